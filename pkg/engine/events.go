package engine

import "sync/atomic"

// Event streams report state transitions only. Byte progress travels out of
// band: the Started event carries a shared atomic counter that workers add
// to and that any consumer may sample on its own timer. Emitting an event
// per buffer would swamp the channel on multi-GiB transfers.
//
// Sends never block. If the consumer stops draining its channel the engine
// keeps working and the events are dropped; work that has reached the blob
// tier cannot be cleanly abandoned anyway.

// UploadState enumerates the upload pipeline states.
type UploadState int

const (
	UploadStarted UploadState = iota
	UploadHashing
	UploadHashComplete
	UploadCompleted
	UploadFailed
)

// UploadEvent is one upload state transition. Which fields are set depends
// on State: Started carries sizes and the progress counter, HashComplete
// the digest, Completed the file ID, Failed the error.
type UploadEvent struct {
	State       UploadState
	TotalSize   int64
	TotalChunks int
	Progress    *atomic.Int64
	SHA256      string
	FileID      string
	Err         error
}

// DownloadState enumerates the download pipeline states.
type DownloadState int

const (
	DownloadStarted DownloadState = iota
	DownloadMerging
	DownloadVerifying
	DownloadCompleted
	DownloadFailed
)

// DownloadEvent is one download state transition. Started carries sizes and
// the progress counter, Completed the output path, Failed the error.
type DownloadEvent struct {
	State       DownloadState
	TotalSize   int64
	TotalChunks int
	Progress    *atomic.Int64
	Path        string
	Err         error
}

func sendUpload(ch chan<- UploadEvent, ev UploadEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func sendDownload(ch chan<- DownloadEvent, ev DownloadEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
