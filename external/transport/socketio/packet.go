package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/foxseedlab/streameval/internal/transport"
	"github.com/gorilla/websocket"
	eiopacket "github.com/zishang520/engine.io-go-parser/packet"
	eioparser "github.com/zishang520/engine.io-go-parser/parser"
	eiotypes "github.com/zishang520/engine.io-go-parser/types"
	sioparser "github.com/zishang520/socket.io-go-parser/v2/parser"
)

const defaultNamespace = "/"

var socketEncoder = sioparser.NewEncoder()

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// frame is one websocket message ready to be written.
type frame struct {
	messageType int
	data        []byte
}

func decodeEngine(messageType int, msg []byte) (*eiopacket.Packet, error) {
	var buf eiotypes.BufferInterface
	if messageType == websocket.BinaryMessage {
		buf = eiotypes.NewBytesBuffer(msg)
	} else {
		buf = eiotypes.NewStringBuffer(msg)
	}
	p, err := eioparser.Parserv4().DecodePacket(buf)
	if err != nil {
		return nil, fmt.Errorf("decode engine.io packet: %w", err)
	}
	return p, nil
}

func packetBody(p *eiopacket.Packet) ([]byte, error) {
	if p.Data == nil {
		return nil, nil
	}
	if c, ok := p.Data.(io.Closer); ok {
		defer c.Close()
	}
	return io.ReadAll(p.Data)
}

func encodeEngine(typ eiopacket.Type, data eiotypes.BufferInterface, messageType int) (frame, error) {
	p := &eiopacket.Packet{Type: typ}
	if data != nil {
		p.Data = data
	}
	buf, err := eioparser.Parserv4().EncodePacket(p, true)
	if err != nil {
		return frame{}, fmt.Errorf("encode engine.io %s packet: %w", typ, err)
	}
	return frame{messageType: messageType, data: buf.Bytes()}, nil
}

func pongFrame() (frame, error) {
	return encodeEngine(eiopacket.PONG, nil, websocket.TextMessage)
}

// encodeSocket wraps a Socket.IO packet in Engine.IO message frames. Binary
// attachments, if any, follow the text header as binary frames.
func encodeSocket(p *sioparser.Packet) ([]frame, error) {
	bufs := socketEncoder.Encode(p)
	frames := make([]frame, 0, len(bufs))
	for i, buf := range bufs {
		messageType := websocket.BinaryMessage
		if i == 0 {
			messageType = websocket.TextMessage
		}
		f, err := encodeEngine(eiopacket.MESSAGE, buf, messageType)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// encodeEvent marshals every argument up front: the Socket.IO encoder drops
// a payload it cannot marshal instead of failing.
func encodeEvent(name string, args []any) ([]frame, error) {
	data := make([]any, 0, len(args)+1)
	data = append(data, name)
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode %s event argument %d: %w", name, i, err)
		}
		data = append(data, json.RawMessage(b))
	}
	return encodeSocket(&sioparser.Packet{Type: sioparser.EVENT, Nsp: defaultNamespace, Data: data})
}

func encodeConnect(authToken string) ([]frame, error) {
	return encodeSocket(&sioparser.Packet{
		Type: sioparser.CONNECT,
		Nsp:  defaultNamespace,
		Data: map[string]any{"authorization": authToken},
	})
}

func encodeDisconnect() ([]frame, error) {
	return encodeSocket(&sioparser.Packet{Type: sioparser.DISCONNECT, Nsp: defaultNamespace})
}

// packetDecoder collects the Socket.IO packets completed by each Engine.IO
// message. The underlying decoder is stateful across binary attachments.
type packetDecoder struct {
	dec     sioparser.Decoder
	decoded []*sioparser.Packet
}

func newPacketDecoder() *packetDecoder {
	d := &packetDecoder{}
	d.reset()
	return d
}

func (d *packetDecoder) reset() {
	if d.dec != nil {
		d.dec.Destroy()
	}
	d.dec = sioparser.NewDecoder()
	_ = d.dec.On("decoded", func(args ...any) {
		if len(args) == 0 {
			return
		}
		if p, ok := args[0].(*sioparser.Packet); ok {
			d.decoded = append(d.decoded, p)
		}
	})
}

// add feeds one message body, a string for text frames and []byte for binary
// attachments. A failed body resets the decoder; text is retried once so a
// reconstruction abandoned by the server does not swallow the next packet.
func (d *packetDecoder) add(body any) ([]*sioparser.Packet, error) {
	err := d.dec.Add(body)
	if err != nil {
		d.reset()
		if _, text := body.(string); text {
			if retryErr := d.dec.Add(body); retryErr == nil {
				err = nil
			}
		}
	}
	out := d.decoded
	d.decoded = nil
	if err != nil {
		return out, fmt.Errorf("decode socket.io packet: %w", err)
	}
	return out, nil
}

func decodeEvent(p *sioparser.Packet) (transport.Event, error) {
	data, ok := p.Data.([]any)
	if !ok || len(data) == 0 {
		return transport.Event{}, errors.New("event payload has no name")
	}
	name, ok := data[0].(string)
	if !ok {
		return transport.Event{}, fmt.Errorf("event name is %T, not a string", data[0])
	}
	args := make([]json.RawMessage, 0, len(data)-1)
	for i, a := range data[1:] {
		b, err := json.Marshal(a)
		if err != nil {
			return transport.Event{}, fmt.Errorf("re-encode %s argument %d: %w", name, i, err)
		}
		args = append(args, b)
	}
	return transport.Event{Name: name, Args: args}, nil
}

func connectSID(p *sioparser.Packet) string {
	m, _ := p.Data.(map[string]any)
	sid, _ := m["sid"].(string)
	return sid
}

func connectErrorMessage(p *sioparser.Packet) string {
	switch v := p.Data.(type) {
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if v != "" {
			return v
		}
	}
	return "connection refused"
}
