// Package prom exports secchan endpoint metrics to Prometheus, mirroring
// the teacher's observability/prom package.
package prom

import (
	"github.com/corewire/secchan/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer exports channel metrics to Prometheus.
type Observer struct {
	handshakeTotal   *prometheus.CounterVec
	framesWritten    prometheus.Counter
	framesRead       prometheus.Counter
	bytesWritten     prometheus.Counter
	bytesRead        prometheus.Counter
	frameTooLarge    *prometheus.CounterVec
	compressFallback prometheus.Counter
	hashMismatch     prometheus.Counter
	remoteStreamErrs prometheus.Counter
}

// NewObserver registers channel metrics on reg and returns an Observer.
func NewObserver(reg *prometheus.Registry) *Observer {
	o := &Observer{
		handshakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secchan_handshake_total",
			Help: "Handshake attempts by role and outcome.",
		}, []string{"role", "result"}),
		framesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secchan_frames_written_total",
			Help: "Datagram frames written.",
		}),
		framesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secchan_frames_read_total",
			Help: "Datagram frames read.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secchan_bytes_written_total",
			Help: "Ciphertext bytes written to the stream.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secchan_bytes_read_total",
			Help: "Ciphertext bytes read from the stream.",
		}),
		frameTooLarge: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secchan_frame_too_large_total",
			Help: "Frames rejected for exceeding max package size, by direction.",
		}, []string{"direction"}),
		compressFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secchan_compress_fallback_total",
			Help: "Writes that fell back to an uncompressed payload after a gzip failure.",
		}),
		hashMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secchan_stream_hash_mismatch_total",
			Help: "Stream chunks that failed SHA-256 verification.",
		}),
		remoteStreamErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secchan_stream_remote_error_total",
			Help: "Stream ACKs carrying a non-empty remote error.",
		}),
	}
	reg.MustRegister(
		o.handshakeTotal,
		o.framesWritten,
		o.framesRead,
		o.bytesWritten,
		o.bytesRead,
		o.frameTooLarge,
		o.compressFallback,
		o.hashMismatch,
		o.remoteStreamErrs,
	)
	return o
}

var _ observability.Observer = (*Observer)(nil)

func (o *Observer) HandshakeStarted(string) {}

func (o *Observer) HandshakeCompleted(role string, ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	o.handshakeTotal.WithLabelValues(role, result).Inc()
}

func (o *Observer) FrameWritten(n int) {
	o.framesWritten.Inc()
	o.bytesWritten.Add(float64(n))
}

func (o *Observer) FrameRead(n int) {
	o.framesRead.Inc()
	o.bytesRead.Add(float64(n))
}

func (o *Observer) FrameTooLarge(direction string) {
	o.frameTooLarge.WithLabelValues(direction).Inc()
}

func (o *Observer) CompressFallback(error) { o.compressFallback.Inc() }

func (o *Observer) HashMismatch() { o.hashMismatch.Inc() }

func (o *Observer) RemoteStreamError() { o.remoteStreamErrs.Inc() }
