package console

import (
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

// YesOrNo asks question and defaults to No on empty or unknown input.
func YesOrNo(question string) (string, error) {
	rl, err := readline.New(question + " [y/N]: ")
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	if strings.ToLower(strings.TrimSpace(response)) == Yes {
		return Yes, nil
	}
	return No, nil
}

// Shell returns a line reader with history kept in historyFile (may be empty).
func Shell(prompt, historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "q",
	})
}
