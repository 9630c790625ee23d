package thinkgear

const (
	syncByte   = 0xAA
	excodeByte = 0x55

	// maxPayload is the largest payload length the protocol allows.
	maxPayload = 169
)

// Data codes carried in packet rows.
const (
	CodePoorSignal    byte = 0x02
	CodeAttention     byte = 0x04
	CodeMeditation    byte = 0x05
	CodeBlinkStrength byte = 0x16
	CodeRawWave       byte = 0x80
	CodeEEGPower      byte = 0x83
)

// Row is one data row of a packet payload.
type Row struct {
	Excode int
	Code   byte
	Data   []byte
}

// Packet is the list of rows carried by one checksummed packet.
type Packet []Row

// Parser reassembles packets from a byte stream. It keeps partial packets
// between calls and skips bytes until the next sync sequence whenever a
// header or checksum is invalid.
type Parser struct {
	buf []byte

	packets int
	dropped int
}

// Feed appends data to the stream and returns every packet completed by it.
func (p *Parser) Feed(data []byte) []Packet {
	p.buf = append(p.buf, data...)

	var out []Packet
	for {
		pkt, consumed, ok := p.next()
		if consumed > 0 {
			p.buf = p.buf[consumed:]
		}
		if ok {
			out = append(out, pkt)
			p.packets++
			continue
		}
		if consumed == 0 {
			break
		}
	}

	if len(p.buf) == 0 {
		p.buf = nil
	}

	return out
}

// Stats returns how many packets were decoded and how many were rejected.
func (p *Parser) Stats() (packets, dropped int) {
	return p.packets, p.dropped
}

// next examines the head of the buffer. consumed is the number of bytes
// that can be discarded; ok reports whether pkt is a valid packet.
func (p *Parser) next() (pkt Packet, consumed int, ok bool) {
	buf := p.buf

	// Skip to the first sync pair.
	i := 0
	for i+1 < len(buf) && !(buf[i] == syncByte && buf[i+1] == syncByte) {
		i++
	}
	if i > 0 {
		return nil, i, false
	}
	if len(buf) < 3 {
		return nil, 0, false
	}

	length := int(buf[2])
	if length == syncByte {
		// Runs of sync bytes: realign on the last pair.
		return nil, 1, false
	}
	if length > maxPayload {
		p.dropped++
		return nil, 2, false
	}
	if len(buf) < 3+length+1 {
		return nil, 0, false
	}

	payload := buf[3 : 3+length]
	if checksum(payload) != buf[3+length] {
		p.dropped++
		return nil, 2, false
	}

	rows, valid := parseRows(payload)
	if !valid {
		p.dropped++
		return nil, 3 + length + 1, false
	}

	return rows, 3 + length + 1, true
}

func checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return ^sum
}

func parseRows(payload []byte) (Packet, bool) {
	var rows Packet
	for i := 0; i < len(payload); {
		excode := 0
		for i < len(payload) && payload[i] == excodeByte {
			excode++
			i++
		}
		if i >= len(payload) {
			return nil, false
		}

		code := payload[i]
		i++

		size := 1
		if code >= 0x80 {
			if i >= len(payload) {
				return nil, false
			}
			size = int(payload[i])
			i++
		}
		if i+size > len(payload) {
			return nil, false
		}

		data := make([]byte, size)
		copy(data, payload[i:i+size])
		rows = append(rows, Row{Excode: excode, Code: code, Data: data})
		i += size
	}

	return rows, true
}
