package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var playCmd = &cobra.Command{
	Use:   "play <game>",
	Short: "Play a game interactively at the terminal",
	Long:  `Runs one game locally through the interpreter, with command history on the arrow keys. Type 'quit' or press Ctrl-D to stop.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		library := newLibrary()
		headless, _ := cmd.Flags().GetBool("headless")

		eng, err := newFactory(library, logger)(strings.ToLower(args[0]))
		if err != nil {
			return err
		}
		defer eng.Close()

		obs, info, err := eng.Reset()
		if err != nil {
			return err
		}
		fmt.Println(obs)

		ed := newLineEditor(headless)
		for {
			line, err := ed.ReadLine(fmt.Sprintf("[%d pts, %d moves] > ", info.Score, info.Moves))
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			if err != nil {
				return err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.EqualFold(line, "quit") {
				return nil
			}

			obs, next, done, err := eng.Step(line)
			if err != nil {
				fmt.Printf("(%v)\n", err)
				continue
			}
			info = next
			fmt.Println(obs)
			if done {
				fmt.Printf("Game over. Final score: %d moves: %d\n", info.Score, info.Moves)
				return nil
			}
		}
	},
}

func init() {
	playCmd.Flags().Bool("headless", false, "Read plain lines from stdin (no raw terminal input)")
	rootCmd.AddCommand(playCmd)
}

const maxHistory = 100

// lineEditor reads commands with backspace and up/down history in raw
// terminal mode. Headless mode (or a terminal that refuses raw mode) falls
// back to buffered line reads so piped input still works.
type lineEditor struct {
	headless bool
	reader   *bufio.Reader
	history  []string
}

func newLineEditor(headless bool) *lineEditor {
	return &lineEditor{headless: headless}
}

func (ed *lineEditor) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	var oldState *term.State
	var err error
	if !ed.headless {
		oldState, err = term.MakeRaw(fd)
	}
	if ed.headless || err != nil {
		if ed.reader == nil {
			ed.reader = bufio.NewReader(os.Stdin)
		}
		line, err := ed.reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if err == io.EOF && line == "" {
			return "", io.EOF
		}
		return line, nil
	}

	var lineRunes []rune
	histIdx := len(ed.history)

	eraseLine := func() {
		for range lineRunes {
			fmt.Print("\b \b")
		}
	}

	for {
		buf := make([]byte, 4)
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			term.Restore(fd, oldState)
			fmt.Print("\r\n")
			return string(lineRunes), nil
		}
		b := buf[0]

		switch {
		case b == '\r' || b == '\n':
			term.Restore(fd, oldState)
			fmt.Print("\r\n")
			line := string(lineRunes)
			ed.remember(line)
			return line, nil

		case b == '\x04': // Ctrl-D
			term.Restore(fd, oldState)
			fmt.Print("\r\n")
			return "", io.EOF

		case b == '\x7f' || b == '\x08': // Backspace / DEL
			if len(lineRunes) > 0 {
				lineRunes = lineRunes[:len(lineRunes)-1]
				fmt.Print("\b \b")
			}

		case b == '\x1b': // ESC, read 2 more bytes for arrow keys
			buf2 := make([]byte, 2)
			n2, _ := os.Stdin.Read(buf2)
			if n2 == 2 && buf2[0] == '[' {
				switch buf2[1] {
				case 'A': // Up
					if histIdx > 0 {
						eraseLine()
						histIdx--
						lineRunes = []rune(ed.history[histIdx])
						fmt.Print(string(lineRunes))
					}
				case 'B': // Down
					if histIdx < len(ed.history) {
						eraseLine()
						histIdx++
						if histIdx < len(ed.history) {
							lineRunes = []rune(ed.history[histIdx])
						} else {
							lineRunes = nil
						}
						fmt.Print(string(lineRunes))
					}
				}
			}

		default:
			if b >= ' ' {
				r, _ := utf8.DecodeRune(buf[:n])
				if r != utf8.RuneError {
					lineRunes = append(lineRunes, r)
					fmt.Print(string(r))
				}
			}
		}
	}
}

// remember appends to history, skipping blanks and immediate repeats.
func (ed *lineEditor) remember(line string) {
	if line == "" {
		return
	}
	if n := len(ed.history); n > 0 && ed.history[n-1] == line {
		return
	}
	ed.history = append(ed.history, line)
	if len(ed.history) > maxHistory {
		ed.history = ed.history[1:]
	}
}
