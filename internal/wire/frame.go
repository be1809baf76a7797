package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Framing errors.
var (
	// ErrFrameTooLarge rejects frames above [MaxFrameSize].
	ErrFrameTooLarge = errors.New("wire: frame too large")

	// ErrTruncated means a message or record ended before its declared
	// contents.
	ErrTruncated = errors.New("wire: truncated message")
)

// Fixed part of each message body: version u32 + code/status u32 + jail id
// u32 for commands, version u32 + status u32 for replies.
const (
	commandFixedSize = 12
	replyFixedSize   = 8
	frameLenSize     = 4
)

// WriteCommand frames and writes one command.
func WriteCommand(w io.Writer, c Command) error {
	body := make([]byte, commandFixedSize+len(c.Payload))
	binary.LittleEndian.PutUint32(body[0:4], c.Version)
	binary.LittleEndian.PutUint32(body[4:8], uint32(c.Code))
	binary.LittleEndian.PutUint32(body[8:12], c.JailID)
	copy(body[commandFixedSize:], c.Payload)

	return writeFrame(w, body)
}

// ReadCommand reads and decodes one framed command.
func ReadCommand(r io.Reader) (Command, error) {
	body, err := readFrame(r)
	if err != nil {
		return Command{}, err
	}

	if len(body) < commandFixedSize {
		return Command{}, fmt.Errorf("command body %d bytes: %w", len(body), ErrTruncated)
	}

	return Command{
		Version: binary.LittleEndian.Uint32(body[0:4]),
		Code:    Code(binary.LittleEndian.Uint32(body[4:8])),
		JailID:  binary.LittleEndian.Uint32(body[8:12]),
		Payload: body[commandFixedSize:],
	}, nil
}

// WriteReply frames and writes one reply.
func WriteReply(w io.Writer, rp Reply) error {
	body := make([]byte, replyFixedSize+len(rp.Payload))
	binary.LittleEndian.PutUint32(body[0:4], rp.Version)
	binary.LittleEndian.PutUint32(body[4:8], uint32(rp.Status))
	copy(body[replyFixedSize:], rp.Payload)

	return writeFrame(w, body)
}

// ReadReply reads and decodes one framed reply.
func ReadReply(r io.Reader) (Reply, error) {
	body, err := readFrame(r)
	if err != nil {
		return Reply{}, err
	}

	if len(body) < replyFixedSize {
		return Reply{}, fmt.Errorf("reply body %d bytes: %w", len(body), ErrTruncated)
	}

	return Reply{
		Version: binary.LittleEndian.Uint32(body[0:4]),
		Status:  Status(binary.LittleEndian.Uint32(body[4:8])),
		Payload: body[replyFixedSize:],
	}, nil
}

func writeFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes: %w", len(body), ErrFrameTooLarge)
	}

	var lenBuf [frameLenSize]byte

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}

	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [frameLenSize]byte

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes: %w", size, ErrFrameTooLarge)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	return body, nil
}
