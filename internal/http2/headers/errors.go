package headers

import (
	"errors"
	"fmt"

	"hpackcodec/internal/http2/structs"
)

// ConnectionError ends the whole connection with Code. Header block
// decoding failures always map to COMPRESSION_ERROR since the peers' tables
// can no longer be trusted to agree.
type ConnectionError struct {
	Code uint32
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error %s: %v", structs.ErrorCodeName(e.Code), e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func compressionError(err error) error {
	return &ConnectionError{Code: structs.COMPRESSION_ERROR, Err: err}
}

func protocolError(format string, args ...interface{}) error {
	return &ConnectionError{Code: structs.PROTOCOL_ERROR, Err: fmt.Errorf(format, args...)}
}

// ErrorCode picks the GOAWAY code for err.
func ErrorCode(err error) uint32 {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Code
	}
	return structs.INTERNAL_ERROR
}
