// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/motionforge/rigwave/pkg/regwave"
)

var (
	serveListen   string
	serveUsername string
	serveMQTT     string
	serveTopic    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Fan telemetry out to websocket and MQTT consumers",
	Long: `Poll the rig and republish telemetry batches.

Each poll cycle's samples become one CBOR-encoded batch, broadcast as a
binary message to every connected websocket client on /telemetry, and
optionally published to an MQTT broker.

With --username, websocket clients must present HTTP Basic credentials.
The password is read from the RIGWAVE_PASSWORD environment variable, or
prompted interactively if not set. A --password flag is intentionally
not provided to avoid leaking credentials in shell history.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8900", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveUsername, "username", "", "Require HTTP Basic auth with this username")
	serveCmd.Flags().StringVar(&serveMQTT, "mqtt", "", "MQTT broker URL (e.g. tcp://localhost:1883)")
	serveCmd.Flags().StringVar(&serveTopic, "topic", "rigwave/telemetry", "MQTT topic for batches")
}

// GetPassword retrieves the serve password from environment or prompts
// the user.
func GetPassword() (string, error) {
	if pw := os.Getenv("RIGWAVE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// hub tracks connected websocket clients and broadcasts frames to them.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.Close()
}

// broadcast sends one binary frame to every client, dropping clients
// whose writes fail.
func (h *hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Printf("serve: dropping websocket client: %v", err)
			delete(h.clients, c)
			c.Close()
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	m := cfg.RegisterMap()

	password := ""
	if serveUsername != "" {
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	link, err := OpenLink()
	if err != nil {
		return err
	}
	defer link.Close()

	var mqttClient mqtt.Client
	if serveMQTT != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(serveMQTT).
			SetClientID("rigwave-serve")
		mqttClient = mqtt.NewClient(opts)
		if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("mqtt connect: %w", token.Error())
		}
		defer mqttClient.Disconnect(250)
		log.Printf("serve: connected to MQTT broker at %s", serveMQTT)
	}

	h := newHub()
	upgrader := websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
	}

	http.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		if serveUsername != "" && !checkBasicAuth(r, serveUsername, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="rigwave"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("serve: upgrade failed: %v", err)
			return
		}
		h.add(conn)
		log.Printf("serve: websocket client connected (%d total)", h.count())
		// Reader goroutine: we never expect inbound frames, but reading
		// is how gorilla surfaces close events.
		go func() {
			defer h.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	go func() {
		log.Printf("serve: listening on %s", serveListen)
		if err := http.ListenAndServe(serveListen, nil); err != nil {
			log.Fatalf("serve: http: %v", err)
		}
	}()

	// Poll loop on this goroutine; it owns the transport.
	poller := regwave.NewPoller(link, m, regwave.FixedPointCodec{})
	if err := poller.Resync(); err != nil {
		return err
	}
	log.Printf("serve: polling %s every %v", link.Info, pollInterval)

	var seq uint64
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		samples, err := poller.Poll()
		if err != nil {
			if errors.Is(err, regwave.ErrConnectionLost) {
				return err
			}
			log.Printf("serve: poll failed (will retry): %v", err)
			continue
		}
		if len(samples) == 0 {
			continue
		}
		seq++

		frame, err := regwave.EncodeBatch(regwave.NewBatch(seq, poller.Status(), samples))
		if err != nil {
			log.Printf("serve: %v", err)
			continue
		}
		h.broadcast(frame)
		if mqttClient != nil {
			mqttClient.Publish(serveTopic, 0, false, frame)
		}
	}
	return nil
}

func checkBasicAuth(r *http.Request, username, password string) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
	return userOK && passOK
}
