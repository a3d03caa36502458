package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// ErrNoChoice is returned by Choose when there is nothing to pick from.
var ErrNoChoice = fmt.Errorf("%w: no options to choose from", common.ErrValidation)

// Prompter reads answers to console prompts, one line at a time.
type Prompter struct {
	writer      io.Writer
	input       io.Reader
	reader      *LineReader
	progressBar *progressbar.ProgressBar
}

// NewPrompter creates a prompter reading from reader and writing prompts to writer.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		input:  reader,
		reader: NewLineReader(reader),
		writer: writer,
	}
}

// Writer returns the output the prompter writes to.
func (p *Prompter) Writer() io.Writer {
	return p.writer
}

// Println writes a line of output, logging write failures.
func (p *Prompter) Println(a ...any) {
	if _, err := fmt.Fprintln(p.writer, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

// Ask prints prompt and returns the trimmed answer.
func (p *Prompter) Ask(ctx context.Context, prompt string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	return p.reader.ReadLine(ctx)
}

// AskDefault is Ask with a value used when the answer is empty.
func (p *Prompter) AskDefault(ctx context.Context, prompt, def string) (string, error) {
	answer, err := p.Ask(ctx, fmt.Sprintf("%s [%s]", prompt, def))
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Confirm asks a yes/no question until it gets y, yes, n or no.
// An empty answer selects def.
func (p *Prompter) Confirm(ctx context.Context, prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		answer, err := p.Ask(ctx, fmt.Sprintf("%s (%s)", prompt, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.Println(FormatError("Please answer y or n."))
	}
}

// Choose prints a numbered menu and returns the zero-based index picked.
func (p *Prompter) Choose(ctx context.Context, title string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, ErrNoChoice
	}

	var b strings.Builder
	b.WriteString(BoldStyle.Render(title))
	b.WriteString("\n")
	for i, opt := range options {
		fmt.Fprintf(&b, "  %s %s\n", SubtleStyle.Render(fmt.Sprintf("%d.", i+1)), opt)
	}
	if _, err := fmt.Fprint(p.writer, b.String()); err != nil {
		return 0, fmt.Errorf("failed to write menu: %w", err)
	}

	for {
		answer, err := p.Ask(ctx, fmt.Sprintf("Choice [1-%d]", len(options)))
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(answer)
		if convErr == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		p.Println(FormatError("Invalid choice. Please try again."))
	}
}

// Password reads a secret. On a terminal the input is not echoed; otherwise
// it is read as a plain line so scripted input works.
func (p *Prompter) Password(ctx context.Context, prompt string) (string, error) {
	f, ok := p.input.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.Ask(ctx, prompt)
	}

	if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	type result struct {
		err    error
		secret []byte
	}
	resultCh := make(chan result, 1)
	go func() {
		secret, err := term.ReadPassword(int(f.Fd()))
		resultCh <- result{secret: secret, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		p.Println()
		if res.err != nil {
			return "", fmt.Errorf("failed to read password: %w", res.err)
		}
		return string(res.secret), nil
	}
}

// ConfirmLarge asks before recording a transaction over the large amount limit.
func (p *Prompter) ConfirmLarge(ctx context.Context, amount int64, description string) (bool, error) {
	p.Println(FormatWarning(fmt.Sprintf("%s for %q is unusually large.", FormatAmount(amount), description)))
	return p.Confirm(ctx, "Record it anyway?", false)
}

// StartProgress draws a progress bar for total steps.
func (p *Prompter) StartProgress(total int, description string) {
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// Progress moves the bar to done steps. It is a no-op without StartProgress.
func (p *Prompter) Progress(done int) {
	if p.progressBar == nil {
		return
	}
	if err := p.progressBar.Set(done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// FinishProgress completes and releases the current bar.
func (p *Prompter) FinishProgress() {
	if p.progressBar == nil {
		return
	}
	if err := p.progressBar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	p.progressBar = nil
}

// IsClosed reports whether err means the input ended or was canceled.
func IsClosed(err error) bool {
	return errors.Is(err, ErrInputClosed) || errors.Is(err, ErrInputCancelled)
}
