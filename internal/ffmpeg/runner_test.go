package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCommandRunner implements CommandRunner for testing
type MockCommandRunner struct {
	commands  []string
	envs      [][]string
	outputs   [][]byte
	errors    []error
	callIndex int
}

func (m *MockCommandRunner) Run(ctx context.Context, env []string, cmd string, args ...string) ([]byte, error) {
	m.commands = append(m.commands, cmd+" "+strings.Join(args, " "))
	m.envs = append(m.envs, env)

	if m.callIndex < len(m.outputs) {
		output := m.outputs[m.callIndex]
		var err error
		if m.callIndex < len(m.errors) {
			err = m.errors[m.callIndex]
		}
		m.callIndex++
		return output, err
	}
	return []byte(""), nil
}

func newTestRunner(mock *MockCommandRunner) *Runner {
	return NewRunnerWithExecutor(hclog.NewNullLogger(), mock, "/usr/bin/ffmpeg", "/usr/bin/ffprobe", 1)
}

func TestRunPrependsThreadCap(t *testing.T) {
	mock := &MockCommandRunner{}
	r := newTestRunner(mock)

	require.NoError(t, r.Run(context.Background(), []string{"-i", "in.mp4", "-y", "out.3gp"}))

	require.Len(t, mock.commands, 1)
	assert.True(t, strings.HasPrefix(mock.commands[0], "/usr/bin/ffmpeg -threads 1 -i in.mp4"))
	assert.Equal(t, []string{"OMP_NUM_THREADS=1"}, mock.envs[0])
}

func TestRunWithFallbackUsesSimplifiedOnPrimaryFailure(t *testing.T) {
	mock := &MockCommandRunner{
		outputs: [][]byte{[]byte("Unrecognized option 'mbd'"), []byte("")},
		errors:  []error{errors.New("exit status 1"), nil},
	}
	r := newTestRunner(mock)

	primary := []string{"-i", "in.mp4", "-mbd", "rd", "-y", "out.3gp"}
	simplified := []string{"-i", "in.mp4", "-y", "out.3gp"}
	require.NoError(t, r.RunWithFallback(context.Background(), primary, simplified))

	require.Len(t, mock.commands, 2)
	assert.Contains(t, mock.commands[0], "-mbd rd")
	assert.NotContains(t, mock.commands[1], "-mbd")
}

func TestRunWithFallbackReportsBothFailures(t *testing.T) {
	mock := &MockCommandRunner{
		outputs: [][]byte{[]byte("primary diagnostic"), []byte("simplified diagnostic")},
		errors:  []error{errors.New("exit status 1"), errors.New("exit status 1")},
	}
	r := newTestRunner(mock)

	err := r.RunWithFallback(context.Background(), []string{"-i", "a"}, []string{"-i", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary diagnostic")
	assert.Contains(t, err.Error(), "simplified diagnostic")
}

func TestProbeDuration(t *testing.T) {
	mock := &MockCommandRunner{outputs: [][]byte{[]byte("123.456\n")}, errors: []error{nil}}
	r := newTestRunner(mock)

	assert.InDelta(t, 123.456, r.ProbeDuration(context.Background(), "file.3gp"), 0.001)
	assert.Contains(t, mock.commands[0], "/usr/bin/ffprobe")
	assert.Contains(t, mock.commands[0], "format=duration")
}

func TestProbeDurationToleratesFailure(t *testing.T) {
	mock := &MockCommandRunner{outputs: [][]byte{[]byte("garbage")}, errors: []error{errors.New("exit status 1")}}
	r := newTestRunner(mock)

	assert.Zero(t, r.ProbeDuration(context.Background(), "file.3gp"))
}

func TestTruncateKeepsTail(t *testing.T) {
	long := strings.Repeat("x", 600) + "useful tail"
	got := Truncate(long, 100)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "useful tail"))
	assert.Equal(t, "short", Truncate("short", 100))
}

func TestTruncateStartsOnRuneBoundary(t *testing.T) {
	// A tail cut landing inside the two-byte é moves forward past it.
	assert.Equal(t, "...z", Truncate("aaéz", 2))
	assert.True(t, utf8.ValidString(Truncate("диагностика кодека", 7)))
}
