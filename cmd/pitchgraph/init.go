// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lpararaa/pitchgraph/internal/config"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/internal/secrets"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// initHTTPClient is the HTTP client used for provider key validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

const (
	defaultGraphURI      = "bolt://localhost:7687"
	defaultGraphUsername = "neo4j"
	graphCheckTimeout    = 10 * time.Second
)

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider      initWizardStep = iota // select provider
	stepAPIKey                              // enter API key
	stepValidateKey                         // validating key (spinner)
	stepGraphURI                            // enter graph URI
	stepGraphPassword                       // enter graph password
	stepValidateGraph                       // connecting to graph (spinner)
	stepDone                                // wizard complete
	stepError                               // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider      provider.Name
	APIKey        string
	GraphURI      string
	GraphPassword string
}

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
)
type configWrittenMsg struct{ path string }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	apiKeyInput    textinput.Model
	uriInput       textinput.Model
	passwordInput  textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	skipGraphCheck bool
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	uri := textinput.New()
	uri.Placeholder = defaultGraphURI

	password := textinput.New()
	password.Placeholder = "leave empty if authentication is disabled"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:          stepProvider,
		apiKeyInput:   apiKey,
		uriInput:      uri,
		passwordInput: password,
		spinner:       sp,
		secretStore:   store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m.handleValidationSuccess(msg)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		switch msg.step {
		case stepValidateKey:
			m.step = stepAPIKey
			m.apiKeyInput.Focus()
		case stepValidateGraph:
			m.step = stepGraphURI
			m.passwordInput.Blur()
			m.uriInput.Focus()
		}
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepGraphURI:
		return m.handleGraphURIInput(msg)
	case stepGraphPassword:
		return m.handleGraphPasswordInput(msg)
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(provider.Names)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = provider.Names[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		m.apiKeyInput.Blur()
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderKeyCmd(m.result.Provider, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleGraphURIInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		uri := strings.TrimSpace(m.uriInput.Value())
		if uri == "" {
			uri = defaultGraphURI
		}
		m.result.GraphURI = uri
		m.validationErr = ""
		m.step = stepGraphPassword
		m.uriInput.Blur()
		m.passwordInput.Focus()
		return m, textinput.Blink
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.uriInput, cmd = m.uriInput.Update(msg)
	return m, cmd
}

func (m initModel) handleGraphPasswordInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.result.GraphPassword = m.passwordInput.Value()
		m.validationErr = ""
		m.passwordInput.Blur()
		if m.skipGraphCheck {
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepValidateGraph
		return m, tea.Batch(
			m.spinner.Tick,
			validateGraphCmd(m.result.GraphURI, m.result.GraphPassword),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.passwordInput, cmd = m.passwordInput.Update(msg)
	return m, cmd
}

func (m initModel) handleValidationSuccess(msg validationSuccessMsg) (tea.Model, tea.Cmd) {
	switch msg.step {
	case stepValidateKey:
		m.step = stepGraphURI
		m.uriInput.Focus()
		return m, textinput.Blink
	case stepValidateGraph:
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	}
	return m, nil
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepAPIKey:
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	case stepGraphURI:
		m.uriInput, cmd = m.uriInput.Update(msg)
	case stepGraphPassword:
		m.passwordInput, cmd = m.passwordInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Pitchgraph Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/2: Choose a language model provider") + "\n\n")
		for i, p := range provider.Names {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+string(m.result.Provider)+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		m.writeValidationErr(&b)
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " API key…\n")

	case stepGraphURI:
		b.WriteString(promptStyle.Render("Step 2/2: Graph database URI") + "\n\n")
		b.WriteString(m.uriInput.View() + "\n")
		m.writeValidationErr(&b)
		b.WriteString("\n" + dimStyle.Render("enter to continue (empty for "+defaultGraphURI+")  ctrl+c to quit"))

	case stepGraphPassword:
		b.WriteString(promptStyle.Render("Step 2/2: Password for "+defaultGraphUsername+"@"+m.result.GraphURI) + "\n\n")
		b.WriteString(m.passwordInput.View() + "\n")
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateGraph:
		b.WriteString(m.spinner.View() + " Connecting to " + m.result.GraphURI + "…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("pitchgraph serve") + " and " + promptStyle.Render("pitchgraph ask") + " to get started.\n")
		b.WriteString("Run " + promptStyle.Render("pitchgraph doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func (m initModel) writeValidationErr(b *strings.Builder) {
	if m.validationErr != "" {
		b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
	}
}

func validateProviderKeyCmd(p provider.Name, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, p, key); err != nil {
			return validationErrorMsg{step: stepValidateKey, err: err}
		}
		return validationSuccessMsg{step: stepValidateKey}
	}
}

func validateGraphCmd(uri, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), graphCheckTimeout)
		defer cancel()

		db, err := openGraph(ctx, graph.Neo4jConfig{URI: uri, Username: defaultGraphUsername, Password: password})
		if err == nil {
			err = db.Ping(ctx)
			_ = db.Close(ctx)
		}
		if err != nil {
			return validationErrorMsg{step: stepValidateGraph, err: err}
		}
		return validationSuccessMsg{step: stepValidateGraph}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// GenerateConfigYAML produces a pitchgraph.yaml from the wizard result.
// Secrets are referenced via keyring:// URIs and stored separately by
// storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) string {
	providerKey := secrets.URI(secrets.Service, secrets.ProviderKeyName(string(result.Provider)))
	defaultModel := defaultModelForProvider(result.Provider)

	graphURI := result.GraphURI
	if graphURI == "" {
		graphURI = defaultGraphURI
	}
	graphPassword := ""
	if result.GraphPassword != "" {
		graphPassword = secrets.URI(secrets.Service, secrets.GraphPasswordKey)
	}

	var sb strings.Builder
	sb.WriteString("# pitchgraph configuration, generated by pitchgraph init\n\n")

	sb.WriteString("networking:\n")
	sb.WriteString("  listen: \"127.0.0.1:8000\"\n")
	sb.WriteString("  cors_origins:\n")
	sb.WriteString("    - \"http://localhost:3000\"\n")
	sb.WriteString("  rate_limit_rps: 5\n")
	sb.WriteString("  rate_limit_burst: 10\n\n")

	sb.WriteString("graph:\n")
	sb.WriteString(fmt.Sprintf("  uri: %q\n", graphURI))
	sb.WriteString(fmt.Sprintf("  username: %q\n", defaultGraphUsername))
	sb.WriteString(fmt.Sprintf("  password: %q\n", graphPassword))
	sb.WriteString("  schema_ttl: 5m\n\n")

	sb.WriteString("guard:\n")
	sb.WriteString("  max_rows: 1000\n")
	sb.WriteString("  chat_max_rows: 2000\n")
	sb.WriteString("  max_query_length: 20000\n")
	sb.WriteString("  allowed_labels: [\"Player\", \"Team\", \"Match\"]\n")
	sb.WriteString("  execution_timeout: 30s\n\n")

	sb.WriteString("providers:\n")
	sb.WriteString(fmt.Sprintf("  %s:\n", result.Provider))
	sb.WriteString(fmt.Sprintf("    api_key: %q\n\n", providerKey))

	sb.WriteString("models:\n")
	sb.WriteString(fmt.Sprintf("  default: %q\n\n", defaultModel))

	sb.WriteString("storage:\n")
	sb.WriteString("  backend: sqlite\n\n")

	sb.WriteString("logging:\n")
	sb.WriteString("  level: info\n")
	sb.WriteString("  format: text\n")

	return sb.String()
}

// defaultModelForProvider returns the model ref a fresh config uses.
func defaultModelForProvider(p provider.Name) string {
	switch p {
	case provider.NameAnthropic:
		return "anthropic/claude-sonnet-4-5"
	case provider.NameOpenAI:
		return "openai/gpt-4o"
	case provider.NameGoogle:
		return "google/gemini-2.5-flash"
	case provider.NameOpenRouter:
		return "openrouter/google/gemini-2.5-flash"
	default:
		return string(p) + "/default"
	}
}

// storeSecretAndWriteConfig saves secrets to the OS keyring and writes the
// config YAML to the default config path.
//
// An existing config is only replaced with forceOverwrite, unless it is
// still the untouched default written on first run.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	if !forceOverwrite {
		if existing, readErr := os.ReadFile(cfgPath); readErr == nil && !bytes.Equal(existing, config.DefaultConfigYAML) {
			return "", pgerr.Errorf(pgerr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	keyName := secrets.ProviderKeyName(string(result.Provider))
	if err := store.Store(secrets.Service, keyName, result.APIKey); err != nil {
		return "", pgerr.Errorf(pgerr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
	}

	// Secrets stored before a failed write are not rolled back; a re-run
	// overwrites them.
	if result.GraphPassword != "" {
		if err := store.Store(secrets.Service, secrets.GraphPasswordKey, result.GraphPassword); err != nil {
			return "", pgerr.Errorf(pgerr.CodeSecretStoreFailure, "storing graph password: %w", err)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", pgerr.Errorf(pgerr.CodeConfigWriteFailure, "creating config directory %s: %w", dir, err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateConfigYAML(result)), 0o600); err != nil {
		return "", pgerr.Errorf(pgerr.CodeConfigWriteFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the config path init writes to. A variable so
// tests can override it.
var configPathForWrite = config.DefaultConfigPath

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Run an interactive wizard that walks you through:
  1. Choosing a language model provider and checking its API key
  2. Pointing pitchgraph at the Neo4j database holding the season graph

The API key and graph password are stored in the OS keyring and
referenced via keyring:// URIs in the config file. No secrets are
written in plain text.

After completion, run:
  pitchgraph serve    start the server
  pitchgraph ask      ask a question
  pitchgraph doctor   verify your setup`,
		RunE: runInit,
	}

	cmd.Flags().Bool("skip-graph-check", false, "write the config without connecting to the graph")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"pitchgraph init requires an interactive terminal.\n"+
				"To configure pitchgraph non-interactively, edit ~/.config/pitchgraph/pitchgraph.yaml\n"+
				"and store keys with 'pitchgraph secret set'.")
		return pgerr.New(pgerr.CodeCLISetupFailure, "pitchgraph init: not an interactive terminal")
	}

	m := newInitModel(secretStoreFactory())
	m.skipGraphCheck, _ = cmd.Flags().GetBool("skip-graph-check")
	m.forceOverwrite, _ = cmd.Flags().GetBool("force")

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return pgerr.Errorf(pgerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return pgerr.New(pgerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return pgerr.Errorf(pgerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
