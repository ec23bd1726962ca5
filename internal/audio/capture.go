package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

// CaptureConfig contains configuration for the ffmpeg capture source
type CaptureConfig struct {
	FFmpegPath   string
	Input        string // device name or stream URL
	InputFormat  string // ffmpeg input format for devices (e.g. "alsa", "avfoundation"); empty for URLs
	SampleRate   int
	FrameSamples int // samples per delivered frame
}

// FFmpegSource captures audio through an ffmpeg process and delivers
// fixed-size sample frames at the cadence the audio subsystem produces them.
type FFmpegSource struct {
	config       CaptureConfig
	ffmpegCmd    *exec.Cmd
	ffmpegStdout io.ReadCloser
	frames       chan []float32
	ctx          context.Context
	cancel       context.CancelFunc
	logger       *logger.Logger
	mu           sync.Mutex
	isRunning    bool
}

// NewFFmpegSource creates a new capture source
func NewFFmpegSource(ctx context.Context, config CaptureConfig, logger *logger.Logger) *FFmpegSource {
	captureCtx, captureCancel := context.WithCancel(ctx)

	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.FrameSamples <= 0 {
		config.FrameSamples = 4096
	}

	return &FFmpegSource{
		config: config,
		frames: make(chan []float32, 8),
		ctx:    captureCtx,
		cancel: captureCancel,
		logger: logger.Named("capture").With(String("input", config.Input)),
	}
}

// Start starts the ffmpeg process and begins delivering frames
func (s *FFmpegSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	s.logger.Info("Starting audio capture",
		Int("sample_rate", s.config.SampleRate),
		Int("frame_samples", s.config.FrameSamples))

	args := []string{
		"-loglevel", "error", // Minimal logging
		"-fflags", "nobuffer", // Disable input buffering
		"-flags", "low_delay", // Enable low delay mode
	}

	// Device inputs need an explicit input format; stream URLs do not
	if s.config.InputFormat != "" {
		args = append(args, "-f", s.config.InputFormat)
	}

	args = append(args,
		"-i", s.config.Input, // Input device or URL
		"-f", "f32le", // Raw float samples on stdout
		"-acodec", "pcm_f32le",
		"-ac", "1", // Mono
		"-ar", fmt.Sprintf("%d", s.config.SampleRate),
		"-flush_packets", "1", // Flush packets immediately
		"pipe:1",
	)

	s.ffmpegCmd = exec.CommandContext(s.ctx, s.config.FFmpegPath, args...)

	var err error
	s.ffmpegStdout, err = s.ffmpegCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := s.ffmpegCmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s.isRunning = true
	go s.readFrames()

	return nil
}

// Frames returns the channel of captured sample frames. The channel is closed
// when capture ends.
func (s *FFmpegSource) Frames() <-chan []float32 {
	return s.frames
}

// Stop stops the capture and releases the device. Safe to call more than once.
func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	s.logger.Info("Stopping audio capture")

	s.cancel()

	if s.ffmpegCmd != nil && s.ffmpegCmd.Process != nil {
		// ffmpeg may already have exited; errors here are expected
		_ = s.ffmpegCmd.Process.Kill()
		_ = s.ffmpegCmd.Wait()
	}

	return nil
}

// readFrames reads fixed-size sample frames from ffmpeg and delivers them in
// capture order until the process exits or the source is stopped.
func (s *FFmpegSource) readFrames() {
	defer close(s.frames)

	frameBytes := s.config.FrameSamples * 4 // f32le
	buffer := make([]byte, frameBytes)
	framesRead := 0

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Capture stopped", Int("frames_read", framesRead))
			return
		default:
		}

		if _, err := io.ReadFull(s.ffmpegStdout, buffer); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				s.logger.Info("Audio source ended", Int("frames_read", framesRead))
			} else if s.ctx.Err() == nil {
				s.logger.Error("Error reading from audio source", Error(err))
			}
			return
		}

		samples := DecodeF32LE(buffer)
		framesRead++

		select {
		case s.frames <- samples:
		case <-s.ctx.Done():
			return
		}
	}
}
