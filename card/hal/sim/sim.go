package sim

import (
	"sync"
	"time"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// Default timing of the simulated controller.
const (
	// DefaultTick is the virtual time that elapses on every register read.
	DefaultTick = 100 * time.Microsecond

	// DefaultBusyReads is the number of SCR reads a command stays busy.
	DefaultBusyReads = 2

	// DefaultDataReads is the number of DAT or DMA_SCR reads a data transfer
	// stays busy after the card starts sending.
	DefaultDataReads = 4
)

const pageSize = 4096

// Direction is the direction of a programmed data transfer.
type Direction uint8

// Transfer directions.
const (
	DirectionRead  Direction = iota // Card to memory
	DirectionWrite                  // Memory to card
)

// String returns the direction name.
func (d Direction) String() string {
	if d == DirectionWrite {
		return "write"
	}
	return "read"
}

// Command records one command issued on the CMD line.
type Command struct {
	Index  uint8
	Arg    uint32
	App    bool    // Issued after APP_CMD
	Flags  hal.CMD // Raw CMD register value
	Failed bool    // Controller reported a command error
}

// Transfer records one DMA transfer programmed by the driver.
type Transfer struct {
	Address   uint32 // DMA memory address
	Length    uint32 // DMA length in bytes
	Blocks    uint32 // DAT block count
	Direction Direction
	LBA       uint32 // First card block, for READ_MULTIPLE_BLOCK
	Started   bool   // A data command fed the transfer
	Status    pkg.TransferStatus
	Done      bool
}

// Controller is a simulated SD controller with a card slot.
//
// It implements [hal.Bus] and [hal.Timer] on a virtual clock that advances
// by a fixed tick on every register read, so polling loops and timeouts
// behave deterministically regardless of host speed.
type Controller struct {
	mutex sync.Mutex

	card  *Card
	clock hal.ClockMode

	// Command path
	arg      uint32
	rsp      [4]uint32
	cmdError bool
	cmdBusy  int
	cardBusy int

	// Data path
	dat         hal.DAT
	datBusy     bool
	datError    bool
	dmaBusy     bool
	dmaToMemory bool
	dmaAddress  uint32
	dmaLength   uint32
	pending     bool // Armed and waiting for a data command
	remaining   int  // Reads until the running transfer completes

	memory map[uint32]*[pageSize]byte

	// Virtual clock and the one-shot countdown
	now      time.Duration
	tick     time.Duration
	deadline time.Duration
	expire   func()

	// Behavior
	busyReads int
	dataReads int
	failCmd   map[uint8]bool
	failApp   map[uint8]bool
	stallData bool
	dataFault bool

	// Recorded activity
	commands  []Command
	transfers []Transfer
	clocks    []hal.ClockMode
	accesses  uint64
}

var (
	_ hal.Bus   = (*Controller)(nil)
	_ hal.Timer = (*Controller)(nil)
)

// New creates a controller with an empty slot and the clock stopped.
func New() *Controller {
	return &Controller{
		memory:    make(map[uint32]*[pageSize]byte),
		tick:      DefaultTick,
		busyReads: DefaultBusyReads,
		dataReads: DefaultDataReads,
		failCmd:   make(map[uint8]bool),
		failApp:   make(map[uint8]bool),
	}
}

// Insert places a card in the slot.
func (c *Controller) Insert(card *Card) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.card = card
	pkg.LogDebug(pkg.ComponentSim, "card inserted", "blocks", card.Blocks())
}

// Remove empties the slot. Transfers in flight never complete.
func (c *Controller) Remove() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.card = nil
	pkg.LogDebug(pkg.ComponentSim, "card removed")
}

// Card returns the card in the slot, or nil.
func (c *Controller) Card() *Card {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.card
}

// SetTick sets the virtual time that elapses on every register read.
func (c *Controller) SetTick(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tick = d
}

// SetBusyReads sets how many SCR reads a command (and R1b busy) lasts.
func (c *Controller) SetBusyReads(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.busyReads = n
}

// SetDataReads sets how many status reads a data transfer lasts.
func (c *Controller) SetDataReads(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.dataReads = n
}

// FailCommand makes the controller report a command error for every
// standard command with the given index.
func (c *Controller) FailCommand(index uint8, fail bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failCmd[index] = fail
}

// FailAppCommand makes the controller report a command error for every
// application command with the given index.
func (c *Controller) FailAppCommand(index uint8, fail bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failApp[index] = fail
}

// StallData keeps data transfers busy forever once armed.
func (c *Controller) StallData(stall bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stallData = stall
}

// DataFault makes data transfers complete with the DAT error bit set.
func (c *Controller) DataFault(fault bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.dataFault = fault
}

// Commands returns the commands issued since the log was last cleared.
func (c *Controller) Commands() []Command {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Command(nil), c.commands...)
}

// Transfers returns the transfers programmed since the log was last cleared.
func (c *Controller) Transfers() []Transfer {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Transfer(nil), c.transfers...)
}

// Clocks returns every clock mode written since the log was last cleared.
func (c *Controller) Clocks() []hal.ClockMode {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]hal.ClockMode(nil), c.clocks...)
}

// Clock returns the current bus clock.
func (c *Controller) Clock() hal.ClockMode {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.clock
}

// Accesses returns the number of register reads and writes so far.
func (c *Controller) Accesses() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.accesses
}

// ClearLog discards recorded commands, transfers and clock changes.
func (c *Controller) ClearLog() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.commands = c.commands[:0]
	c.transfers = c.transfers[:0]
	c.clocks = c.clocks[:0]
}

// Now returns the virtual time.
func (c *Controller) Now() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

// ReadReg implements [hal.Bus].
func (c *Controller) ReadReg(r hal.Register) uint32 {
	c.mutex.Lock()
	c.accesses++
	v := c.readLocked(r)
	c.now += c.tick
	var fire func()
	if c.expire != nil && c.now >= c.deadline {
		fire, c.expire = c.expire, nil
	}
	c.mutex.Unlock()

	// The expiry callback runs outside the lock, as an interrupt would.
	if fire != nil {
		fire()
	}
	return v
}

func (c *Controller) readLocked(r hal.Register) uint32 {
	switch r {
	case hal.RegSCR:
		s := hal.SCRClock(c.clock)
		if c.card != nil {
			s |= hal.SCRCardInserted
		}
		switch {
		case c.cmdBusy > 0:
			c.cmdBusy--
			s |= hal.SCRCmdBusy
		case c.cardBusy > 0:
			c.cardBusy--
			s |= hal.SCRCardBusy
		}
		if c.cmdError {
			s |= hal.SCRCmdError
		}
		return uint32(s)

	case hal.RegARG:
		return c.arg

	case hal.RegRSP0, hal.RegRSP1, hal.RegRSP2, hal.RegRSP3:
		return c.rsp[r-hal.RegRSP0]

	case hal.RegDAT:
		c.stepData()
		d := c.dat & hal.DATBlocksMask
		if c.datBusy {
			d |= hal.DATBusy
		}
		if c.datError {
			d |= hal.DATError
		}
		return uint32(d)

	case hal.RegDMASCR:
		c.stepData()
		var d hal.DMASCR
		if c.dmaToMemory {
			d |= hal.DMADirection
		}
		if c.dmaBusy {
			d |= hal.DMABusy
		}
		return uint32(d)

	case hal.RegDMAAddress:
		return c.dmaAddress

	case hal.RegDMALength:
		return c.dmaLength
	}
	return 0
}

// stepData advances a running transfer toward completion.
func (c *Controller) stepData() {
	if c.remaining == 0 {
		return
	}
	c.remaining--
	if c.remaining > 0 {
		return
	}
	c.datBusy = false
	c.dmaBusy = false
	c.datError = c.dataFault
	if c.dataFault {
		c.finish(pkg.TransferStatusBusFault)
	} else {
		c.finish(pkg.TransferStatusSuccess)
	}
}

// WriteReg implements [hal.Bus].
func (c *Controller) WriteReg(r hal.Register, v uint32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.accesses++

	switch r {
	case hal.RegSCR:
		c.clock = hal.SCR(v).ClockMode()
		c.clocks = append(c.clocks, c.clock)

	case hal.RegARG:
		c.arg = v

	case hal.RegCMD:
		c.issue(hal.CMD(v))

	case hal.RegDAT:
		d := hal.DAT(v)
		if d.Stop() {
			c.datBusy = false
			c.pending = false
			c.remaining = 0
			c.finish(pkg.TransferStatusAborted)
		}
		if d.StartRead() || d.StartWrite() {
			c.dat = d
			c.datBusy = true
			c.datError = false
			c.pending = true
			c.remaining = 0
		}

	case hal.RegDMASCR:
		d := hal.DMASCR(v)
		if d.Stop() {
			c.dmaBusy = false
			c.finish(pkg.TransferStatusAborted)
		}
		if d.Start() {
			c.dmaBusy = true
			c.dmaToMemory = d.ToMemory()
			dir := DirectionWrite
			if d.ToMemory() {
				dir = DirectionRead
			}
			c.transfers = append(c.transfers, Transfer{
				Address:   c.dmaAddress,
				Length:    c.dmaLength,
				Blocks:    c.dat.Blocks(),
				Direction: dir,
			})
		}

	case hal.RegDMAAddress:
		c.dmaAddress = v

	case hal.RegDMALength:
		c.dmaLength = v
	}
}

// finish marks the most recent transfer complete, if it is still open.
func (c *Controller) finish(status pkg.TransferStatus) {
	if n := len(c.transfers); n > 0 && !c.transfers[n-1].Done {
		c.transfers[n-1].Done = true
		c.transfers[n-1].Status = status
	}
}

// issue executes the command in cmd against the card in the slot.
func (c *Controller) issue(cmd hal.CMD) {
	index := cmd.Index()
	rec := Command{Index: index, Arg: c.arg, Flags: cmd}

	c.cmdBusy = c.busyReads
	c.cardBusy = 0
	c.cmdError = false
	c.rsp = [4]uint32{}

	defer func() {
		c.cmdError = rec.Failed
		c.commands = append(c.commands, rec)
	}()

	// Without a card or a clock nothing answers on the CMD line.
	if c.card == nil || c.clock == hal.ClockStop {
		rec.Failed = true
		return
	}

	rec.App = c.card.appCmd
	if (rec.App && c.failApp[index]) || (!rec.App && c.failCmd[index]) {
		c.card.appCmd = false
		rec.Failed = true
		return
	}

	_, r := c.card.execute(index, c.arg)
	if !r.ok || !encodingMatches(cmd, r.kind) {
		rec.Failed = true
		return
	}

	if !cmd.SkipResponse() {
		c.rsp = r.words
	}
	if r.busy {
		c.cardBusy = c.busyReads
	}
	if r.data != nil {
		c.feed(index, r)
	}
}

// encodingMatches reports whether the host configured the CMD register in
// a way that lets it receive the card's response without a CRC or timeout
// error.
func encodingMatches(cmd hal.CMD, kind responseKind) bool {
	if cmd.SkipResponse() {
		return true
	}
	switch kind {
	case responseNone:
		return false
	case responseLong:
		return cmd.LongResponse() && cmd.ReservedResponse()
	case responseOCR:
		return !cmd.LongResponse() && cmd.IgnoreCRC()
	default:
		return !cmd.LongResponse()
	}
}

// feed delivers a data payload into the armed transfer.
func (c *Controller) feed(index uint8, r reply) {
	if !c.pending || !c.dmaBusy || !c.dmaToMemory || !c.dat.StartRead() {
		pkg.LogDebug(pkg.ComponentSim, "data dropped, no read armed", "index", index)
		return
	}
	if n := len(c.transfers); n > 0 {
		c.transfers[n-1].Started = true
		if index == 18 {
			c.transfers[n-1].LBA = r.lba
		}
	}
	if c.stallData {
		return
	}

	size := c.dat.Blocks() * BlockSize
	if c.dmaLength < size {
		size = c.dmaLength
	}
	buf := make([]byte, size)
	n := r.data(buf)
	c.writeMem(c.dmaAddress, buf[:n])

	c.pending = false
	c.remaining = c.dataReads
	if c.remaining < 1 {
		c.remaining = 1
	}
}

// ReadMem implements [hal.Bus].
func (c *Controller) ReadMem(address uint32, buf []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for len(buf) > 0 {
		page, off := address/pageSize, address%pageSize
		n := copy(buf, c.page(page, false)[off:])
		buf = buf[n:]
		address += uint32(n)
	}
}

// WriteMem stores data into simulated cartridge memory.
func (c *Controller) WriteMem(address uint32, data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.writeMem(address, data)
}

func (c *Controller) writeMem(address uint32, data []byte) {
	for len(data) > 0 {
		page, off := address/pageSize, address%pageSize
		n := copy(c.page(page, true)[off:], data)
		data = data[n:]
		address += uint32(n)
	}
}

var zeroPage [pageSize]byte

func (c *Controller) page(index uint32, create bool) []byte {
	p, ok := c.memory[index]
	if !ok {
		if !create {
			return zeroPage[:]
		}
		p = new([pageSize]byte)
		c.memory[index] = p
	}
	return p[:]
}

// Start implements [hal.Timer] on the virtual clock.
func (c *Controller) Start(d time.Duration, expire func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.deadline = c.now + d
	c.expire = expire
}

// Stop implements [hal.Timer].
func (c *Controller) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.expire = nil
}

// Armed reports whether a countdown is pending.
func (c *Controller) Armed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.expire != nil
}
