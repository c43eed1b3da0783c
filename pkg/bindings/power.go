package bindings

// PowerPolicy decides the transmit power actually used for a requested power.
type PowerPolicy interface {
	Limit(requested uint8) uint8
}

// PassThrough is the default policy, it grants whatever is requested.
type PassThrough struct{}

func (PassThrough) Limit(requested uint8) uint8 {
	return requested
}

// Ceiling answers every request with a fixed board ceiling, regardless of what was requested.
// Boards whose front end cannot exceed a given power use it.
type Ceiling uint8

func (c Ceiling) Limit(uint8) uint8 {
	return uint8(c)
}

// Clamp grants the request up to a maximum.
type Clamp uint8

func (c Clamp) Limit(requested uint8) uint8 {
	if requested > uint8(c) {
		return uint8(c)
	}
	return requested
}
