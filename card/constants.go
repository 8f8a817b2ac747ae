package card

// BlockSize is the size of an SD block in bytes.
const BlockSize = 512

// DefaultScratchAddress is where the SWITCH_FUNC status block lands in
// cartridge memory during initialization.
const DefaultScratchAddress = 0x05000000

// SD command indices (Physical Layer Simplified Specification, 4.7.4).
const (
	CmdGoIdleState       = 0  // GO_IDLE_STATE
	CmdAllSendCID        = 2  // ALL_SEND_CID
	CmdSendRelativeAddr  = 3  // SEND_RELATIVE_ADDR
	CmdSwitchFunc        = 6  // SWITCH_FUNC
	CmdSelectCard        = 7  // SELECT/DESELECT_CARD
	CmdSendIfCond        = 8  // SEND_IF_COND
	CmdStopTransmission  = 12 // STOP_TRANSMISSION
	CmdReadMultipleBlock = 18 // READ_MULTIPLE_BLOCK
	CmdSetBlockCount     = 23 // SET_BLOCK_COUNT
	CmdAppCmd            = 55 // APP_CMD
	AppCmdSetBusWidth    = 6  // ACMD6 SET_BUS_WIDTH
	AppCmdSDSendOpCond   = 41 // ACMD41 SD_SEND_OP_COND
)

// Command arguments.
const (
	argSwitchCheckHighSpeed = 0x00FFFFF1 // Mode 0 (check), group 1 function 1
	argSwitchSetHighSpeed   = 0x80FFFFF1 // Mode 1 (switch), group 1 function 1

	argIfCondVoltage27To36 = 1 << 8
	argIfCondCheckPattern  = 0xAA
	argIfCond              = argIfCondVoltage27To36 | argIfCondCheckPattern

	argBusWidth4Bit = 2

	argOCR = 0xFF8000 // 2.7-3.6 V window
	argHCS = 1 << 30  // Host capacity support
)

// Response fields.
const (
	r3OCR  = 0xFF8000
	r3CCS  = 1 << 30
	r3Busy = 1 << 31

	r6RCAMask = 0xFFFF0000

	r7Echo = argIfCondVoltage27To36 | argIfCondCheckPattern
)

// SWITCH_FUNC status block layout.
const (
	switchGroup1Support = 12     // Offset of the big-endian group 1 support bits
	switchHighSpeed     = 1 << 1 // Function 1 (high speed) in group 1
)
