// Package status broadcasts short load and playback messages to every
// connected websocket client.
package status

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

type Message struct {
	Message  string
	Time     time.Time
	Type     int
	Progress float32
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		unregisterClient(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump drains control frames so the client notices a closed socket
func (c *client) readPump() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func NewClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 32)}
	registerClient(c)
	go c.writePump()
	go c.readPump()

	globalLock.Lock()
	defer globalLock.Unlock()
	if lastMessage != nil {
		c.send <- lastMessage
	}
	return c
}

var statusBroadcast chan *Message
var broadcastList map[*client]bool
var globalLock sync.Mutex
var lastMessage []byte = nil

func registerClient(c *client) {
	globalLock.Lock()
	defer globalLock.Unlock()
	broadcastList[c] = true
}

func unregisterClient(c *client) {
	globalLock.Lock()
	defer globalLock.Unlock()
	delete(broadcastList, c)
}

func init() {
	statusBroadcast = make(chan *Message, 16)
	broadcastList = make(map[*client]bool)
	go func() {
		for s := range statusBroadcast {
			data, err := json.Marshal(s)
			if err != nil {
				log.Printf("[status] marshal error: %v", err)
				continue
			}
			globalLock.Lock()
			lastMessage = data
			for c := range broadcastList {
				// slow clients miss messages instead of stalling everybody
				select {
				case c.send <- data:
				default:
				}
			}
			globalLock.Unlock()
		}
	}()
}

// Last returns the most recently broadcasted message
func Last() (Message, bool) {
	globalLock.Lock()
	defer globalLock.Unlock()
	var m Message
	if lastMessage == nil {
		return m, false
	}
	if err := json.Unmarshal(lastMessage, &m); err != nil {
		return m, false
	}
	return m, true
}

func Status(msg string, _type int, progress float32) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	s := &Message{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress}
	select {
	case statusBroadcast <- s:
	default:
		log.Printf("[status] dropped: %s", msg)
	}
}

func Info(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), INFO, 0.0)
}

func Error(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), ERROR, 0.0)
}

func Progress(progress float32, format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), PROGRESS, progress)
}
