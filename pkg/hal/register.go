package hal

// RegAddress is the register pointer byte sent before a register transfer.
type RegAddress uint8

func (obj RegAddress) ToByte() byte {
	return byte(obj)
}

// Register is a 16 bit device register that can be built from and decoded to
// its raw word.
type Register interface {
	GetAddress() RegAddress
	GetValue() uint16
	SetValue(value uint16)
}
