package kfmt

import "io"

// ringBufferSize defines the size of the ring buffer that captures Printf
// output produced before an output sink is attached. It is large enough to
// hold a full 80x25 text-mode screen and must always be a power of 2.
const ringBufferSize = 2048

// ringBuffer stores the most recent ringBufferSize-1 bytes written to it.
// When the buffer is full, new writes overwrite the oldest data.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write writes len(p) bytes from p to the ringBuffer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)

		// Drop the oldest byte when the write index catches up
		if rb.wIndex == rb.rIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. It returns io.EOF when the buffer is
// empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.rIndex == rb.wIndex {
		return 0, io.EOF
	}

	var n int
	for ; n < len(p) && rb.rIndex != rb.wIndex; n++ {
		p[n] = rb.buffer[rb.rIndex]
		rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
	}

	return n, nil
}

// WriteTo drains the buffer into w. The buffered data is passed to w as at
// most two contiguous slices of the backing array, so draining never
// allocates an intermediate buffer.
func (rb *ringBuffer) WriteTo(w io.Writer) (int64, error) {
	var written int64

	for rb.rIndex != rb.wIndex {
		end := rb.wIndex
		if end < rb.rIndex {
			end = ringBufferSize
		}

		n, err := w.Write(rb.buffer[rb.rIndex:end])
		written += int64(n)
		rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)

		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}

	return written, nil
}
