package hal

// AnalogInput is implemented by analog to digital converters.
type AnalogInput interface {
	// ReadSingle returns a single ended conversion of channel, in raw counts.
	ReadSingle(channel int) (int16, error)
}
