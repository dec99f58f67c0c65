package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pocketvid/pocketvid/internal/ffmpeg"
	"github.com/pocketvid/pocketvid/internal/media"
)

// Slices shorter than this are pointless on the target devices, so the
// part count shrinks until every slice clears it.
const minSliceSeconds = 10.0

// PlanSlices reduces a requested part count so no slice falls under the
// minimum, returning the adjusted count and per-slice duration.
func PlanSlices(totalDuration float64, requestedParts int) (int, float64) {
	if requestedParts < 1 {
		requestedParts = 1
	}
	parts := requestedParts
	if totalDuration/float64(parts) < minSliceSeconds {
		parts = int(totalDuration / minSliceSeconds)
		if parts < 1 {
			parts = 1
		}
	}
	return parts, totalDuration / float64(parts)
}

// EnqueueSplit records a new split job against a completed artifact.
func (rt *Runtime) EnqueueSplit(splitID, fileID, filename string, requestedParts int) {
	rt.Splits.Upsert(splitID, func(r *SplitRecord) {
		r.Status = "processing"
		r.FileID = fileID
		r.Filename = filename
		r.TotalParts = requestedParts
		r.Parts = []Part{}
		r.Timestamp = rt.now()
	})
}

// ProcessSplit slices a completed artifact into equal time parts,
// re-encoding each with the preset of the original job so parts look
// consistent with the whole. One failed part aborts the remainder but
// preserves finished parts for partial download.
func (rt *Runtime) ProcessSplit(ctx context.Context, splitID, fileID string, requestedParts int) {
	rt.Active.Register()
	defer rt.Active.Unregister()

	jobRec, ok := rt.Jobs.Get(fileID)
	if !ok || jobRec.Filename == "" {
		rt.failSplit(splitID, "Source job not found or has no artifact")
		return
	}

	srcPath := filepath.Join(rt.Cfg.DownloadDir, jobRec.Filename)
	if !fileHasContent(srcPath) {
		rt.failSplit(splitID, "Source file is missing")
		return
	}
	ext := strings.ToLower(filepath.Ext(jobRec.Filename))
	if ext != ".mp3" && ext != ".3gp" {
		rt.failSplit(splitID, "Unsupported format: "+ext)
		return
	}

	totalDuration := rt.FFmpeg.ProbeDuration(ctx, srcPath)
	if totalDuration <= 0 {
		rt.failSplit(splitID, "Could not determine source duration")
		return
	}

	numParts, sliceDur := PlanSlices(totalDuration, requestedParts)
	if numParts != requestedParts {
		rt.Logger.Info("reduced split part count to keep slices usable",
			"split_id", splitID, "requested", requestedParts, "actual", numParts)
	}
	rt.Splits.Upsert(splitID, func(r *SplitRecord) { r.TotalParts = numParts })

	rt.Logger.Info("starting split", "split_id", splitID, "file_id", fileID, "parts", numParts)

	for part := 1; part <= numParts; part++ {
		if ctx.Err() != nil {
			rt.failSplit(splitID, "Split aborted by shutdown")
			return
		}

		start := float64(part-1) * sliceDur
		dur := sliceDur
		if part == numParts {
			dur = totalDuration - start
		}

		partFilename := fmt.Sprintf("%s_part%d%s", fileID, part, ext)
		partPath := filepath.Join(rt.Cfg.DownloadDir, partFilename)

		rt.Splits.Upsert(splitID, func(r *SplitRecord) {
			r.CurrentPart = part
			r.CurrentPartProgress = "encoding"
		})

		var args []string
		if ext == ".mp3" {
			args = ffmpeg.SplitAudioArgs(srcPath, partPath, start, dur, media.LookupAudio(jobRec.Quality))
		} else {
			args = ffmpeg.SplitVideoArgs(srcPath, partPath, start, dur, media.LookupVideo(jobRec.Quality))
		}

		if err := rt.FFmpeg.Run(ctx, args); err != nil || !fileHasContent(partPath) {
			detail := "output missing"
			if err != nil {
				detail = TruncateMessage(err.Error(), 200)
			}
			os.Remove(partPath)
			rt.failSplit(splitID, fmt.Sprintf("Failed to create part %d: %s", part, detail))
			return
		}

		info, _ := os.Stat(partPath)
		rt.Splits.Upsert(splitID, func(r *SplitRecord) {
			r.Parts = append(r.Parts, Part{
				Index:     part,
				Filename:  partFilename,
				Size:      info.Size(),
				SizeHuman: HumanSize(info.Size()),
			})
			r.CompletedParts = len(r.Parts)
			r.CurrentPartProgress = "done"
		})
		rt.Logger.Info("split part done", "split_id", splitID, "part", part, "of", numParts)
	}

	rt.Splits.Upsert(splitID, func(r *SplitRecord) {
		r.Status = "completed"
		r.CurrentPartProgress = ""
	})
	rt.Logger.Info("split completed", "split_id", splitID, "parts", numParts)
}

func (rt *Runtime) failSplit(splitID, msg string) {
	rt.Logger.Error("split failed", "split_id", splitID, "reason", msg)
	rt.Splits.Upsert(splitID, func(r *SplitRecord) {
		r.Status = "failed"
		r.Error = msg
	})
}
