package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCompletedJob(t *testing.T, rt *Runtime, fileID, ext string) {
	t.Helper()
	filename := fileID + ext
	require.NoError(t, os.WriteFile(filepath.Join(rt.Cfg.DownloadDir, filename), []byte("artifact"), 0o644))
	rt.Jobs.Upsert(fileID, func(r *Record) {
		r.Status = StatusCompleted
		r.Filename = filename
		r.Quality = "medium"
	})
}

func TestProcessSplitAudio(t *testing.T) {
	exec := &fakeExec{probeOutput: "60"}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})
	fileID := "aaaabbbbccccdddd"
	seedCompletedJob(t, rt, fileID, ".mp3")

	splitID := "split_" + fileID + "_1"
	rt.EnqueueSplit(splitID, fileID, fileID+".mp3", 3)
	rt.ProcessSplit(context.Background(), splitID, fileID, 3)

	rec, ok := rt.Splits.Get(splitID)
	require.True(t, ok)
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, 3, rec.TotalParts)
	assert.Equal(t, 3, rec.CompletedParts)
	require.Len(t, rec.Parts, 3)
	for i, part := range rec.Parts {
		assert.Equal(t, i+1, part.Index)
		assert.Equal(t, fmt.Sprintf("%s_part%d.mp3", fileID, i+1), part.Filename)
		assert.FileExists(t, filepath.Join(rt.Cfg.DownloadDir, part.Filename))
	}
}

func TestProcessSplitReducesPartCount(t *testing.T) {
	exec := &fakeExec{probeOutput: "25"}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})
	fileID := "eeeeffff00001111"
	seedCompletedJob(t, rt, fileID, ".mp3")

	splitID := "split_" + fileID + "_2"
	rt.EnqueueSplit(splitID, fileID, fileID+".mp3", 5)
	rt.ProcessSplit(context.Background(), splitID, fileID, 5)

	rec, _ := rt.Splits.Get(splitID)
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, 2, rec.TotalParts, "slices stay at least ten seconds")
	assert.Len(t, rec.Parts, 2)
}

func TestProcessSplitFailurePreservesFinishedParts(t *testing.T) {
	exec := &fakeExec{
		probeOutput: "60",
		failWhen: func(args []string) bool {
			return strings.Contains(args[len(args)-1], "_part2")
		},
	}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})
	fileID := "2222333344445555"
	seedCompletedJob(t, rt, fileID, ".3gp")

	splitID := "split_" + fileID + "_3"
	rt.EnqueueSplit(splitID, fileID, fileID+".3gp", 3)
	rt.ProcessSplit(context.Background(), splitID, fileID, 3)

	rec, _ := rt.Splits.Get(splitID)
	assert.Equal(t, "failed", rec.Status)
	assert.Contains(t, rec.Error, "part 2")
	require.Len(t, rec.Parts, 1, "first part survives the abort")
	assert.Equal(t, 1, rec.CompletedParts)
	assert.NoFileExists(t, filepath.Join(rt.Cfg.DownloadDir, fileID+"_part2.3gp"))
}

func TestProcessSplitRejectsMissingSource(t *testing.T) {
	exec := &fakeExec{probeOutput: "60"}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})
	fileID := "6666777788889999"
	rt.Jobs.Upsert(fileID, func(r *Record) {
		r.Status = StatusCompleted
		r.Filename = fileID + ".mp3"
	})

	splitID := "split_" + fileID + "_4"
	rt.EnqueueSplit(splitID, fileID, fileID+".mp3", 2)
	rt.ProcessSplit(context.Background(), splitID, fileID, 2)

	rec, _ := rt.Splits.Get(splitID)
	assert.Equal(t, "failed", rec.Status)
	assert.Contains(t, rec.Error, "missing")
}

func TestProcessSplitRejectsUnknownJob(t *testing.T) {
	exec := &fakeExec{probeOutput: "60"}
	rt := newTestRuntime(t, exec, &fakeJobFetcher{})

	splitID := "split_nope_5"
	rt.EnqueueSplit(splitID, "nope", "nope.mp3", 2)
	rt.ProcessSplit(context.Background(), splitID, "nope", 2)

	rec, _ := rt.Splits.Get(splitID)
	assert.Equal(t, "failed", rec.Status)
}
