package sim

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

const (
	flagsR2 = hal.CMDLongResponse | hal.CMDReservedResponse
	flagsR3 = hal.CMDIgnoreCRC | hal.CMDReservedResponse
)

// command issues one command and waits for CMD and DAT0 busy to clear.
func command(c *Controller, index uint8, arg uint32, flags hal.CMD) (bool, [4]uint32) {
	c.WriteReg(hal.RegARG, arg)
	c.WriteReg(hal.RegCMD, uint32(hal.NewCMD(index)|flags))

	scr := hal.SCR(c.ReadReg(hal.RegSCR))
	for scr.CmdBusy() || scr.CardBusy() {
		scr = hal.SCR(c.ReadReg(hal.RegSCR))
	}

	var rsp [4]uint32
	for i := range rsp {
		rsp[i] = c.ReadReg(hal.RegRSP0 + hal.Register(i))
	}
	return !scr.CmdError(), rsp
}

// bringUp takes the inserted card to the transfer state and returns its
// published RCA argument.
func bringUp(t *testing.T, c *Controller, hcs bool) uint32 {
	t.Helper()

	c.WriteReg(hal.RegSCR, uint32(hal.SCRClock(hal.Clock400kHz)))
	command(c, 0, 0, hal.CMDSkipResponse)
	command(c, 8, 0x1AA, 0)

	arg := uint32(0xFF8000)
	if hcs {
		arg |= 1 << 30
	}
	for i := 0; ; i++ {
		if i > 100 {
			t.Fatal("card never left power-up")
		}
		if ok, _ := command(c, 55, 0, 0); !ok {
			t.Fatal("APP_CMD failed")
		}
		ok, rsp := command(c, 41, arg, flagsR3)
		if !ok {
			t.Fatal("SD_SEND_OP_COND failed")
		}
		if rsp[0]&(1<<31) != 0 {
			break
		}
	}

	if ok, _ := command(c, 2, 0, flagsR2); !ok {
		t.Fatal("ALL_SEND_CID failed")
	}
	ok, rsp := command(c, 3, 0, 0)
	if !ok {
		t.Fatal("SEND_RELATIVE_ADDR failed")
	}
	rca := rsp[0] & 0xFFFF0000
	if ok, _ := command(c, 7, rca, 0); !ok {
		t.Fatal("SELECT_CARD failed")
	}
	return rca
}

// startRead arms a read of blocks blocks into memory at address.
func startRead(c *Controller, address, blocks uint32) {
	c.WriteReg(hal.RegDAT, uint32(hal.DATBlocks(blocks)|hal.DATFIFOFlush|hal.DATStartRead))
	c.WriteReg(hal.RegDMAAddress, address)
	c.WriteReg(hal.RegDMALength, blocks*BlockSize)
	c.WriteReg(hal.RegDMASCR, uint32(hal.DMAStart|hal.DMADirection))
}

// waitIdle polls the data path until idle, giving up after limit reads.
func waitIdle(c *Controller, limit int) (idle, failed bool) {
	for i := 0; i < limit; i++ {
		dat := hal.DAT(c.ReadReg(hal.RegDAT))
		dma := hal.DMASCR(c.ReadReg(hal.RegDMASCR))
		if !dat.Busy() && !dma.Busy() {
			return true, dat.Error()
		}
	}
	return false, false
}

func TestControllerEmptySlot(t *testing.T) {
	c := New()
	c.WriteReg(hal.RegSCR, uint32(hal.SCRClock(hal.Clock400kHz)))

	if hal.SCR(c.ReadReg(hal.RegSCR)).CardInserted() {
		t.Error("CardInserted() = true with empty slot")
	}
	if ok, _ := command(c, 8, 0x1AA, 0); ok {
		t.Error("command succeeded with empty slot")
	}

	cmds := c.Commands()
	if len(cmds) != 1 || !cmds[0].Failed {
		t.Errorf("Commands() = %+v, want one failed command", cmds)
	}
}

func TestControllerClockStopped(t *testing.T) {
	c := New()
	c.Insert(NewCard(CardOptions{}))

	if ok, _ := command(c, 8, 0x1AA, 0); ok {
		t.Error("command succeeded with clock stopped")
	}
	if !hal.SCR(c.ReadReg(hal.RegSCR)).CardInserted() {
		t.Error("CardInserted() = false with card in slot")
	}
}

func TestCardBringUp(t *testing.T) {
	tests := []struct {
		name string
		opts CardOptions
		hcs  bool
		ccs  bool
	}{
		{"standard capacity", CardOptions{}, true, false},
		{"high capacity", CardOptions{HighCapacity: true}, true, true},
		{"legacy", CardOptions{Legacy: true}, false, false},
		{"delayed power-up", CardOptions{ReadyAfter: 5}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			card := NewCard(tt.opts)
			c.Insert(card)

			rca := bringUp(t, c, tt.hcs)
			if rca != DefaultRCA<<16 {
				t.Errorf("RCA = %#x, want %#x", rca, DefaultRCA<<16)
			}
			if card.State() != "tran" {
				t.Errorf("State() = %q, want tran", card.State())
			}

			var ocr uint32
			for _, cmd := range c.Commands() {
				if cmd.App && cmd.Index == 41 && !cmd.Failed {
					ocr = cmd.Arg
				}
			}
			if got := ocr&(1<<30) != 0; got != tt.hcs {
				t.Errorf("HCS advertised = %v, want %v", got, tt.hcs)
			}
		})
	}
}

func TestCardInterfaceCondition(t *testing.T) {
	tests := []struct {
		name string
		opts CardOptions
		ok   bool
		echo uint32
	}{
		{"echo", CardOptions{}, true, 0x1AA},
		{"bad echo", CardOptions{BadEcho: true}, true, 0x1AA ^ 0x55},
		{"legacy", CardOptions{Legacy: true}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Insert(NewCard(tt.opts))
			c.WriteReg(hal.RegSCR, uint32(hal.SCRClock(hal.Clock400kHz)))

			ok, rsp := command(c, 8, 0x1AA, 0)
			if ok != tt.ok {
				t.Fatalf("SEND_IF_COND ok = %v, want %v", ok, tt.ok)
			}
			if rsp[0] != tt.echo {
				t.Errorf("echo = %#x, want %#x", rsp[0], tt.echo)
			}
		})
	}
}

func TestCardHighCapacityRequiresHCS(t *testing.T) {
	c := New()
	c.Insert(NewCard(CardOptions{HighCapacity: true}))
	c.WriteReg(hal.RegSCR, uint32(hal.SCRClock(hal.Clock400kHz)))

	for i := 0; i < 10; i++ {
		command(c, 55, 0, 0)
		ok, rsp := command(c, 41, 0xFF8000, flagsR3)
		if !ok {
			t.Fatal("SD_SEND_OP_COND failed")
		}
		if rsp[0]&(1<<31) != 0 {
			t.Fatal("high-capacity card left power-up without HCS")
		}
	}
}

func TestControllerResponseEncoding(t *testing.T) {
	c := New()
	c.Insert(NewCard(CardOptions{}))
	c.WriteReg(hal.RegSCR, uint32(hal.SCRClock(hal.Clock400kHz)))
	command(c, 0, 0, hal.CMDSkipResponse)

	// OCR has no valid CRC; the host must ignore it.
	command(c, 55, 0, 0)
	if ok, _ := command(c, 41, 0xFF8000, 0); ok {
		t.Error("SD_SEND_OP_COND succeeded without ignore-CRC flag")
	}
}

func TestControllerFailInjection(t *testing.T) {
	c := New()
	c.Insert(NewCard(CardOptions{}))
	c.WriteReg(hal.RegSCR, uint32(hal.SCRClock(hal.Clock400kHz)))

	c.FailCommand(8, true)
	if ok, _ := command(c, 8, 0x1AA, 0); ok {
		t.Error("SEND_IF_COND succeeded with injected failure")
	}
	c.FailCommand(8, false)
	if ok, _ := command(c, 8, 0x1AA, 0); !ok {
		t.Error("SEND_IF_COND failed after clearing injected failure")
	}

	c.FailAppCommand(41, true)
	command(c, 55, 0, 0)
	if ok, _ := command(c, 41, 0xFF8000, flagsR3); ok {
		t.Error("SD_SEND_OP_COND succeeded with injected failure")
	}

	cmds := c.Commands()
	last := cmds[len(cmds)-1]
	if !last.App || !last.Failed {
		t.Errorf("last command = %+v, want failed app command", last)
	}
}

func TestControllerReadMultipleBlock(t *testing.T) {
	tests := []struct {
		name string
		opts CardOptions
		arg  func(lba uint32) uint32
	}{
		{"block addressed", CardOptions{HighCapacity: true}, func(lba uint32) uint32 { return lba }},
		{"byte addressed", CardOptions{}, func(lba uint32) uint32 { return lba * BlockSize }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Insert(NewCard(tt.opts))
			bringUp(t, c, true)
			c.ClearLog()

			const address, lba, blocks = 0x01000000, 5, 3
			startRead(c, address, blocks)
			if ok, _ := command(c, 23, blocks, 0); !ok {
				t.Fatal("SET_BLOCK_COUNT failed")
			}
			if ok, _ := command(c, 18, tt.arg(lba), 0); !ok {
				t.Fatal("READ_MULTIPLE_BLOCK failed")
			}
			idle, failed := waitIdle(c, 100)
			if !idle || failed {
				t.Fatalf("waitIdle() = %v, %v, want true, false", idle, failed)
			}

			buf := make([]byte, blocks*BlockSize)
			c.ReadMem(address, buf)
			for i := uint32(0); i < blocks; i++ {
				if got := binary.LittleEndian.Uint32(buf[i*BlockSize:]); got != lba+i {
					t.Errorf("block %d word = %d, want %d", i, got, lba+i)
				}
			}

			xfers := c.Transfers()
			if len(xfers) != 1 {
				t.Fatalf("len(Transfers()) = %d, want 1", len(xfers))
			}
			x := xfers[0]
			if x.LBA != lba || x.Blocks != blocks || x.Length != blocks*BlockSize ||
				x.Direction != DirectionRead || !x.Started || !x.Done ||
				x.Status != pkg.TransferStatusSuccess {
				t.Errorf("Transfer = %+v", x)
			}
		})
	}
}

func TestControllerReadImage(t *testing.T) {
	image := make([]byte, 4*BlockSize)
	for i := range image {
		image[i] = byte(i * 7)
	}
	c := New()
	card := NewCard(CardOptions{HighCapacity: true, Image: image})
	if card.Blocks() != 4 {
		t.Fatalf("Blocks() = %d, want 4", card.Blocks())
	}
	c.Insert(card)
	bringUp(t, c, true)

	startRead(c, 0x2000, 2)
	command(c, 23, 2, 0)
	command(c, 18, 1, 0)
	if idle, _ := waitIdle(c, 100); !idle {
		t.Fatal("transfer did not complete")
	}

	buf := make([]byte, 2*BlockSize)
	c.ReadMem(0x2000, buf)
	if !bytes.Equal(buf, image[BlockSize:3*BlockSize]) {
		t.Error("memory does not match image blocks 1-2")
	}

	// Reads past the end of the card are rejected.
	startRead(c, 0x2000, 2)
	command(c, 23, 2, 0)
	if ok, _ := command(c, 18, 3, 0); ok {
		t.Error("READ_MULTIPLE_BLOCK past end succeeded")
	}
}

func TestControllerDataFault(t *testing.T) {
	c := New()
	c.Insert(NewCard(CardOptions{HighCapacity: true}))
	bringUp(t, c, true)
	c.DataFault(true)
	c.ClearLog()

	startRead(c, 0, 1)
	command(c, 23, 1, 0)
	command(c, 18, 0, 0)
	idle, failed := waitIdle(c, 100)
	if !idle || !failed {
		t.Errorf("waitIdle() = %v, %v, want true, true", idle, failed)
	}
	if x := c.Transfers()[0]; x.Status != pkg.TransferStatusBusFault {
		t.Errorf("Status = %v, want %v", x.Status, pkg.TransferStatusBusFault)
	}
}

func TestControllerStallAndAbort(t *testing.T) {
	c := New()
	card := NewCard(CardOptions{HighCapacity: true})
	c.Insert(card)
	bringUp(t, c, true)
	c.StallData(true)
	c.ClearLog()

	startRead(c, 0, 1)
	command(c, 23, 1, 0)
	command(c, 18, 0, 0)
	if idle, _ := waitIdle(c, 1000); idle {
		t.Fatal("stalled transfer completed")
	}

	c.WriteReg(hal.RegDMASCR, uint32(hal.DMAStop))
	c.WriteReg(hal.RegDAT, uint32(hal.DATStop|hal.DATFIFOFlush))
	if idle, _ := waitIdle(c, 1); !idle {
		t.Error("data path busy after abort")
	}
	if x := c.Transfers()[0]; !x.Done || x.Status != pkg.TransferStatusAborted {
		t.Errorf("Transfer = %+v, want aborted", x)
	}

	if card.State() != "data" {
		t.Errorf("State() = %q, want data", card.State())
	}
	if ok, _ := command(c, 12, 0, 0); !ok {
		t.Error("STOP_TRANSMISSION failed")
	}
	if card.State() != "tran" {
		t.Errorf("State() = %q after STOP_TRANSMISSION, want tran", card.State())
	}
}

func TestControllerSwitchFunction(t *testing.T) {
	tests := []struct {
		name      string
		highSpeed bool
		support   uint16
		result    byte
	}{
		{"supported", true, 0x8003, 1},
		{"unsupported", false, 0x8001, 0xF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			card := NewCard(CardOptions{HighCapacity: true, HighSpeed: tt.highSpeed})
			c.Insert(card)
			bringUp(t, c, true)

			startRead(c, 0x100, 1)
			if ok, _ := command(c, 6, 0x80FFFFF1, 0); !ok {
				t.Fatal("SWITCH_FUNC failed")
			}
			if idle, _ := waitIdle(c, 100); !idle {
				t.Fatal("transfer did not complete")
			}

			var status [SwitchStatusSize]byte
			c.ReadMem(0x100, status[:])
			if got := binary.BigEndian.Uint16(status[12:]); got != tt.support {
				t.Errorf("group 1 support = %#04x, want %#04x", got, tt.support)
			}
			if status[16] != tt.result {
				t.Errorf("group 1 result = %#x, want %#x", status[16], tt.result)
			}
			if card.HighSpeed() != tt.highSpeed {
				t.Errorf("HighSpeed() = %v, want %v", card.HighSpeed(), tt.highSpeed)
			}
		})
	}
}

func TestControllerDataWithoutArmedRead(t *testing.T) {
	c := New()
	c.Insert(NewCard(CardOptions{HighCapacity: true, HighSpeed: true}))
	bringUp(t, c, true)

	// The card answers but nothing lands in memory.
	if ok, _ := command(c, 6, 0x00FFFFF1, 0); !ok {
		t.Fatal("SWITCH_FUNC failed")
	}
	var status [SwitchStatusSize]byte
	c.ReadMem(0, status[:])
	if status != [SwitchStatusSize]byte{} {
		t.Error("status block written without an armed transfer")
	}
}

func TestControllerTimer(t *testing.T) {
	c := New()
	c.SetTick(time.Millisecond)
	fired := 0

	c.Start(5*time.Millisecond, func() { fired++ })
	if !c.Armed() {
		t.Fatal("Armed() = false after Start")
	}
	for i := 0; i < 4; i++ {
		c.ReadReg(hal.RegSCR)
	}
	if fired != 0 {
		t.Fatalf("fired after %v, want 5ms", c.Now())
	}
	c.ReadReg(hal.RegSCR)
	if fired != 1 {
		t.Fatalf("fired = %d at %v, want 1", fired, c.Now())
	}
	if c.Armed() {
		t.Error("Armed() = true after expiry")
	}

	for i := 0; i < 10; i++ {
		c.ReadReg(hal.RegSCR)
	}
	if fired != 1 {
		t.Errorf("one-shot fired %d times", fired)
	}

	c.Start(time.Millisecond, func() { fired++ })
	c.Stop()
	c.ReadReg(hal.RegSCR)
	if fired != 1 {
		t.Error("stopped countdown fired")
	}
}

func TestControllerTimerReentrant(t *testing.T) {
	c := New()

	// The callback may touch the controller; it runs outside the lock.
	c.Start(0, func() { c.Stop() })
	c.ReadReg(hal.RegSCR)
	if c.Armed() {
		t.Error("Armed() = true after expiry")
	}
}

func TestControllerMemory(t *testing.T) {
	c := New()
	data := make([]byte, 6000)
	for i := range data {
		data[i] = byte(i)
	}

	// Spans two page boundaries.
	c.WriteMem(pageSize-100, data)

	got := make([]byte, len(data))
	c.ReadMem(pageSize-100, got)
	if !bytes.Equal(got, data) {
		t.Error("ReadMem() does not match WriteMem()")
	}

	untouched := make([]byte, 16)
	c.ReadMem(0x10000000, untouched)
	if !bytes.Equal(untouched, make([]byte, 16)) {
		t.Error("unwritten memory is not zero")
	}
}

func TestControllerClockLog(t *testing.T) {
	c := New()
	for _, mode := range []hal.ClockMode{hal.ClockStop, hal.Clock400kHz, hal.ClockStop, hal.Clock25MHz} {
		c.WriteReg(hal.RegSCR, uint32(hal.SCRClock(mode)))
	}
	want := []hal.ClockMode{hal.ClockStop, hal.Clock400kHz, hal.ClockStop, hal.Clock25MHz}
	got := c.Clocks()
	if len(got) != len(want) {
		t.Fatalf("Clocks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Clocks()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if c.Clock() != hal.Clock25MHz {
		t.Errorf("Clock() = %v, want %v", c.Clock(), hal.Clock25MHz)
	}
	if c.Accesses() != 4 {
		t.Errorf("Accesses() = %d, want 4", c.Accesses())
	}

	c.ClearLog()
	if len(c.Clocks()) != 0 {
		t.Error("Clocks() not empty after ClearLog")
	}
}

func TestCardRemoval(t *testing.T) {
	c := New()
	c.Insert(NewCard(CardOptions{}))
	c.Remove()
	if c.Card() != nil {
		t.Error("Card() != nil after Remove")
	}
	if hal.SCR(c.ReadReg(hal.RegSCR)).CardInserted() {
		t.Error("CardInserted() = true after Remove")
	}
}
