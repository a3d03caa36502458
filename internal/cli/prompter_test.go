package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPrompter(strings.NewReader(input), &out), &out
}

func TestPrompter_Ask(t *testing.T) {
	p, out := newTestPrompter("  Swiggy dinner \n")

	answer, err := p.Ask(context.Background(), "Description")
	require.NoError(t, err)
	assert.Equal(t, "Swiggy dinner", answer)
	assert.Contains(t, out.String(), "Description")
}

func TestPrompter_AskDefault(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty uses default", input: "\n", want: "2024-06-15"},
		{name: "explicit answer", input: "2024-06-01\n", want: "2024-06-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			got, err := p.AskDefault(context.Background(), "Date", "2024-06-15")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		def     bool
		want    bool
		retried bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "full no", input: "NO\n", def: true, want: false},
		{name: "empty takes default", input: "\n", def: true, want: true},
		{name: "invalid then yes", input: "maybe\nyes\n", want: true, retried: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPrompter(tt.input)
			got, err := p.Confirm(context.Background(), "Continue?", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.retried, strings.Contains(out.String(), "Please answer y or n."))
		})
	}
}

func TestPrompter_Choose(t *testing.T) {
	p, out := newTestPrompter("0\nabc\n2\n")

	idx, err := p.Choose(context.Background(), "Main menu", []string{"Add", "Report", "Logout"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	output := out.String()
	assert.Contains(t, output, "Main menu")
	assert.Contains(t, output, "Logout")
	assert.Equal(t, 2, strings.Count(output, "Invalid choice"))

	_, err = p.Choose(context.Background(), "Empty", nil)
	assert.ErrorIs(t, err, ErrNoChoice)
}

func TestPrompter_InputClosed(t *testing.T) {
	p, _ := newTestPrompter("")

	_, err := p.Confirm(context.Background(), "Continue?", false)
	require.Error(t, err)
	assert.True(t, IsClosed(err))
}

func TestPrompter_PasswordFromPipe(t *testing.T) {
	p, _ := newTestPrompter("Secret#123\n")

	secret, err := p.Password(context.Background(), "Password")
	require.NoError(t, err)
	assert.Equal(t, "Secret#123", secret)
}

func TestPrompter_ConfirmLarge(t *testing.T) {
	p, out := newTestPrompter("y\n")

	ok, err := p.ConfirmLarge(context.Background(), 75000, "Laptop")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "75,000")
	assert.Contains(t, out.String(), `"Laptop"`)
}

func TestPrompter_Progress(t *testing.T) {
	p, out := newTestPrompter("")

	// Without a bar these are no-ops.
	p.Progress(1)
	p.FinishProgress()
	assert.Empty(t, out.String())

	p.StartProgress(3, "Importing")
	for i := 1; i <= 3; i++ {
		p.Progress(i)
	}
	p.FinishProgress()
	assert.Contains(t, out.String(), "Importing")
	assert.Contains(t, out.String(), "3/3")
}
