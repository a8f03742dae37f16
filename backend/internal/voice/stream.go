package voice

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"

	"github.com/bwmarrin/discordgo"
)

// streamer encodes audio bytes and pushes Opus frames into a voice
// connection until the data runs out or stop is closed. Substituted in
// tests.
type streamer interface {
	Stream(vc *discordgo.VoiceConnection, audio []byte, stop <-chan struct{}) error
}

// opusStreamer transcodes WAV bytes to OGG/Opus through ffmpeg and sends
// the Opus packets over the connection's OpusSend channel.
type opusStreamer struct{}

func (o *opusStreamer) Stream(vc *discordgo.VoiceConnection, audio []byte, stop <-chan struct{}) error {
	cmd := exec.Command("ffmpeg",
		"-i", "pipe:0",
		"-c:a", "libopus",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "96k",
		"-f", "ogg",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stderr = io.Discard

	opusOut, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	defer func() {
		opusOut.Close()
		cmd.Wait()
	}()

	_ = vc.Speaking(true)
	defer func() { _ = vc.Speaking(false) }()

	return sendOggPackets(vc, opusOut, stop)
}

// sendOggPackets parses OGG pages off the reader and forwards each Opus
// packet to the voice connection. Codec header packets never go on the
// wire.
func sendOggPackets(vc *discordgo.VoiceConnection, opusOut io.Reader, stop <-chan struct{}) error {
	oggHeader := make([]byte, 27)
	currentPacket := make([]byte, 0, 4000)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if _, err := io.ReadFull(opusOut, oggHeader); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		// Check OGG magic number
		if string(oggHeader[0:4]) != "OggS" {
			return fmt.Errorf("invalid OGG header")
		}

		segCount := int(oggHeader[26])
		if segCount == 0 {
			continue
		}

		segTable := make([]byte, segCount)
		if _, err := io.ReadFull(opusOut, segTable); err != nil {
			return err
		}

		for i := 0; i < segCount; i++ {
			segLen := int(segTable[i])
			if segLen > 0 {
				segData := make([]byte, segLen)
				n, err := io.ReadFull(opusOut, segData)
				if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
					return err
				}
				if n > 0 {
					currentPacket = append(currentPacket, segData[:n]...)
				}
			}

			// A lacing value below 255 terminates the packet
			if segLen < 255 && len(currentPacket) > 0 {
				if err := sendPacket(vc, currentPacket, stop); err != nil {
					return err
				}
				currentPacket = currentPacket[:0]
			}
		}
	}
}

func sendPacket(vc *discordgo.VoiceConnection, packet []byte, stop <-chan struct{}) error {
	// OpusHead/OpusTags are stream metadata, not audio
	if isCodecHeader(packet) {
		return nil
	}

	packetData := make([]byte, len(packet))
	copy(packetData, packet)

	select {
	case vc.OpusSend <- packetData:
		return nil
	case <-stop:
		return nil
	}
}

func isCodecHeader(packet []byte) bool {
	return bytes.HasPrefix(packet, []byte("OpusHead")) || bytes.HasPrefix(packet, []byte("OpusTags"))
}
