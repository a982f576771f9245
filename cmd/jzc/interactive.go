package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
	"github.com/jz-lang/jzc/module"
	"github.com/jz-lang/jzc/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type exportInfo struct {
	name  string
	arity int
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	program  *ast.Node
	wasm     []byte
	err      error
	rt       *runtime.Runtime
	instance *runtime.Instance
	exports  []exportInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
	result   string
}

func newInteractiveModel(program *ast.Node) *interactiveModel {
	return &interactiveModel{program: program, state: stateSelectFunc}
}

type compiledMsg struct {
	err     error
	wasm    []byte
	exports []exportInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.compile
}

func (m *interactiveModel) compile() tea.Msg {
	c := codegen.New()
	result, err := module.Assemble(c, m.program, module.Options{})
	if err != nil {
		return compiledMsg{err: err}
	}
	var names []string
	for name := range result.Descriptor.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	exports := make([]exportInfo, 0, len(names))
	for _, name := range names {
		exports = append(exports, exportInfo{name: name, arity: result.Descriptor.Exports[name].Arity})
	}
	return compiledMsg{wasm: result.Wasm, exports: exports}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.instance != nil {
				m.instance.Close(ctx)
			}
			if m.rt != nil {
				m.rt.Close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.exports)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.exports) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case compiledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.wasm = msg.wasm
		m.exports = msg.exports

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.exports[m.selected]
	m.inputs = make([]textinput.Model, f.arity)
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = "f64"
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 20
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	ctx := context.Background()

	if m.instance == nil {
		rt, err := runtime.New(ctx)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.rt = rt
		inst, err := rt.Instantiate(ctx, m.wasm)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.instance = inst
	}

	f := m.exports[m.selected]
	args := make([]float64, len(m.inputs))
	for i, input := range m.inputs {
		v, _ := strconv.ParseFloat(strings.TrimSpace(input.Value()), 64)
		args[i] = v
	}

	result, err := m.instance.Call(ctx, f.name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: fmt.Sprintf("%v", result)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.wasm == nil {
		return "Compiling..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("jzc"))
	b.WriteString(fmt.Sprintf(" %d bytes compiled\n\n", len(m.wasm)))

	switch m.state {
	case stateSelectFunc:
		if len(m.exports) == 0 {
			b.WriteString("No exported functions.\n")
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.exports {
			line := fmt.Sprintf("%s(%d args)", funcStyle.Render(f.name), f.arity)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("up/down select - enter call - q quit"))

	case stateInputArgs:
		f := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field - enter call - esc back"))

	case stateShowResult:
		f := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue - q quit"))
	}

	return b.String()
}

func runInteractive(program *ast.Node) error {
	p := tea.NewProgram(newInteractiveModel(program), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
