package codec

// CreateDecoder constructs an unopened decoder of the given backend;
// nil is returned for an unknown mode.
func CreateDecoder(mode Mode, chn Channel, opts ...Option) Decoder {
	switch mode {
	case ModeSoftware:
		return NewSoftwareDecoder(chn)
	case ModeVAAPI:
		return NewVAAPIDecoder(chn, opts...)
	case ModeQSV:
		return NewQSVDecoder(chn, opts...)
	}
	return nil
}

// CreateEncoder constructs an unopened encoder of the given backend;
// nil is returned for an unknown mode.
func CreateEncoder(mode Mode, chn Channel, opts ...Option) Encoder {
	switch mode {
	case ModeSoftware:
		return NewSoftwareEncoder(chn)
	case ModeVAAPI:
		return NewVAAPIEncoder(chn, opts...)
	case ModeQSV:
		return NewQSVEncoder(chn, opts...)
	}
	return nil
}
