package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"

	"github.com/mbocsi/edgehub/proto"
)

type TCPTransport struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func NewTCPTransport() *TCPTransport {
	return &TCPTransport{}
}

func (t *TCPTransport) Connect(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	t.conn = conn
	t.scanner = bufio.NewScanner(conn)
	return nil
}

func (t *TCPTransport) Send(frame proto.Frame) error {
	if t.conn == nil {
		return fmt.Errorf("transport is not connected")
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = t.conn.Write(data)
	return err
}

func (t *TCPTransport) Read() (proto.Frame, error) {
	var frame proto.Frame
	if t.scanner == nil {
		return frame, fmt.Errorf("transport is not connected")
	}
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return frame, err
		}
		return frame, fmt.Errorf("connection closed")
	}
	if err := json.Unmarshal(t.scanner.Bytes(), &frame); err != nil {
		return frame, fmt.Errorf("invalid frame: %w", err)
	}
	return frame, nil
}

func (t *TCPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
