package switchbot

// Device is one catalog row: a known sensor, the model that selects
// its payload layout, and how to display it.
type Device struct {
	Addr      Addr
	Type      DeviceType
	Name      string
	SortOrder int
}

// Measurement is a decoded environment reading. CO2 and Light are nil
// for models that do not report them.
type Measurement struct {
	Temperature float64 // degrees Celsius, one decimal place
	Humidity    uint8   // relative humidity percent, 0-100
	CO2         *uint16 // parts per million
	Light       *uint8  // light level index, 0-20
}
