package pkg

import "errors"

// SD bus and session errors.
var (
	// ErrCommand indicates the controller flagged an error for the last
	// command (CRC mismatch, no response, or card error status).
	ErrCommand = errors.New("command error")

	// ErrTimeout indicates a bounded wait ran past its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrBusFault indicates the data path reported an error on completion.
	ErrBusFault = errors.New("data bus fault")

	// ErrIO indicates a sector read failed part way through.
	ErrIO = errors.New("sector I/O failed")

	// ErrAlreadyInitialized indicates a card session is already open.
	ErrAlreadyInitialized = errors.New("card already initialized")

	// ErrInterfaceCondition indicates the SEND_IF_COND echo did not match
	// the requested voltage and check pattern.
	ErrInterfaceCondition = errors.New("interface condition mismatch")

	// ErrVoltageRange indicates the card finished power-up with an empty
	// OCR voltage window.
	ErrVoltageRange = errors.New("voltage window rejected")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// TransferStatus represents the completion status of a data transfer.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusSuccess  TransferStatus = iota // Data path and DMA idle, no error
	TransferStatusTimeout                        // Deadline expired, transfer aborted
	TransferStatusBusFault                       // Data path error bit set
	TransferStatusAborted                        // Stopped by software before completion
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusSuccess:
		return "success"
	case TransferStatusTimeout:
		return "timeout"
	case TransferStatusBusFault:
		return "bus fault"
	case TransferStatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusTimeout:
		return ErrTimeout
	default:
		return ErrBusFault
	}
}
