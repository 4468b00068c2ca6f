package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

// DefaultMaxLogBytes caps a single container log stream.
const DefaultMaxLogBytes int64 = 32 << 20

// LogRequest identifies one container log stream.
type LogRequest struct {
	Namespace string
	Pod       string
	Container string
	Previous  bool
	// Since is the inclusive cutoff. The server-side filter is rounded up to
	// whole seconds; FilterLogSince trims the excess.
	Since time.Time
	Now   time.Time
}

// LogReader reads container logs.
type LogReader interface {
	ReadLogs(ctx context.Context, req LogRequest) ([]byte, error)
}

// KubeLogReader reads logs through the pods/log subresource.
type KubeLogReader struct {
	Client   kubernetes.Interface
	Limiter  *rate.Limiter
	MaxBytes int64
}

// ReadLogs implements LogReader.
func (k *KubeLogReader) ReadLogs(ctx context.Context, req LogRequest) ([]byte, error) {
	if k.Limiter != nil {
		if err := k.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	maxBytes := k.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxLogBytes
	}

	opts := &corev1.PodLogOptions{
		Container:  req.Container,
		Previous:   req.Previous,
		Timestamps: true,
		LimitBytes: ptr.To(maxBytes),
	}
	if !req.Since.IsZero() {
		opts.SinceSeconds = ptr.To(sinceSeconds(req.Now, req.Since))
	}

	stream, err := k.Client.CoreV1().Pods(req.Namespace).GetLogs(req.Pod, opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open log stream for %s/%s: %w", req.Pod, req.Container, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read log stream for %s/%s: %w", req.Pod, req.Container, err)
	}
	return data, nil
}

// sinceSeconds rounds now-since up to whole seconds, with a one second margin
// so an entry exactly at the cutoff is still returned by the server.
func sinceSeconds(now, since time.Time) int64 {
	s := int64(math.Ceil(now.Sub(since).Seconds())) + 1
	if s < 1 {
		s = 1
	}
	return s
}

// maxLogLineBytes caps one line written to the bundle. Longer lines are
// truncated with truncatedSuffix.
const maxLogLineBytes = 1 << 20

const truncatedSuffix = " ...[truncated]"

// FilterLogSince keeps entries whose timestamp prefix is at or after since.
// Lines without a timestamp continue the preceding entry and share its fate;
// lines before the first timestamped entry are kept.
func FilterLogSince(data []byte, since time.Time) []byte {
	if len(data) == 0 {
		return data
	}

	var out bytes.Buffer
	out.Grow(len(data))

	keep := true
	rest := data
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})

		if ts, ok := lineTimestamp(line); ok {
			keep = !ts.Before(since)
		}
		if !keep {
			continue
		}
		if len(line) > maxLogLineBytes {
			out.Write(line[:maxLogLineBytes])
			out.WriteString(truncatedSuffix)
		} else {
			out.Write(line)
		}
		out.WriteByte('\n')
	}
	return out.Bytes()
}

func lineTimestamp(line []byte) (time.Time, bool) {
	first, _, _ := bytes.Cut(line, []byte{' '})
	if len(first) < len("2006-01-02T15:04:05Z") {
		return time.Time{}, false
	}
	if len(first) > len(time.RFC3339Nano)+8 {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, string(first))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// logFileName returns pod.<pod>.<container>[.previous].log.
func logFileName(pod, container string, previous bool) string {
	if previous {
		return fmt.Sprintf("pod.%s.%s.previous.log", pod, container)
	}
	return fmt.Sprintf("pod.%s.%s.log", pod, container)
}
