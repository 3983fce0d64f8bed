package opus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/jonas747/ogg"
)

// EncodeOptions configures an FFmpeg to Opus encode.
type EncodeOptions struct {
	FFmpegPath string
	// Input is a URL or file path. When Stdin is set, Input is ignored.
	Input string
	Stdin io.Reader
	// Volume scales the signal; 1 is unchanged.
	Volume  float64
	Bitrate int
}

// CheckEncoder reports whether the FFmpeg binary can be found.
func CheckEncoder(ffmpegPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

func (o EncodeOptions) args() []string {
	var args []string
	input := o.Input
	if o.Stdin != nil {
		input = "pipe:0"
	} else {
		// Remote streams drop on long plays without these.
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}

	bitrate := o.Bitrate
	if bitrate <= 0 {
		bitrate = 64000
	}

	args = append(args,
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-map", "0:a",
		"-af", "volume="+strconv.FormatFloat(o.Volume, 'f', 2, 64),
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", strconv.Itoa(bitrate),
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"pipe:1",
	)
	return args
}

// Stream is a running encode. Read frames with ReadFrame until io.EOF and
// always Close it to release the FFmpeg process.
type Stream struct {
	*FrameReader
	pr        *io.PipeReader
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// Encode starts FFmpeg and returns a Stream producing Opus frames.
func Encode(ctx context.Context, opts EncodeOptions) (*Stream, error) {
	path := opts.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}

	ctx, cancel := context.WithCancel(ctx)
	ffmpeg := exec.CommandContext(ctx, path, opts.args()...)
	ffmpeg.Stdin = opts.Stdin

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}

	if err := ffmpeg.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		decoder := ogg.NewPacketDecoder(ogg.NewDecoder(stdout))

		// Skip the first 2 OGG metadata packets.
		skip := 2
		for {
			packet, _, err := decoder.Decode()
			if skip > 0 {
				skip--
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					pw.CloseWithError(err)
				}
				return
			}

			var lenBuf [2]byte
			binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(packet)))
			if _, err := pw.Write(lenBuf[:]); err != nil {
				return
			}
			if _, err := pw.Write(packet); err != nil {
				return
			}
		}
	}()

	return &Stream{
		FrameReader: NewFrameReader(pr),
		pr:          pr,
		cmd:         ffmpeg,
		cancel:      cancel,
	}, nil
}

// Close stops FFmpeg if it is still running. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pr.Close()
		s.cancel()
		_ = s.cmd.Wait()
	})
	return s.closeErr
}
