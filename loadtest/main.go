// Command loadtest drives pairs of seeded accounts through chat creation,
// websocket registration and message fan-out.
//
//	go run ./cmd/seed -users a@x.io,b@x.io,... > tokens.tsv
//	go run ./loadtest -tokens tokens.tsv
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	baseURL    = flag.String("base", "http://localhost:8080", "server base URL")
	tokensFile = flag.String("tokens", "tokens.tsv", "seed output: id<TAB>email<TAB>token per line")
	msgCount   = flag.Int("msgs", 20, "messages per user")
)

type account struct {
	ID    string
	Token string
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var (
	sent     atomic.Int64
	received atomic.Int64
	failures atomic.Int64
)

func main() {
	flag.Parse()

	accounts, err := readAccounts(*tokensFile)
	if err != nil {
		log.Fatalf("❌ read tokens: %v", err)
	}
	pairs := len(accounts) / 2
	if pairs == 0 {
		log.Fatal("❌ need at least two seeded accounts")
	}

	log.Printf("🔥 STARTING STRESS TEST: %d users, %d messages each...", pairs*2, *msgCount)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(1)
		go func(a, b account) {
			defer wg.Done()
			runPair(a, b)
		}(accounts[2*i], accounts[2*i+1])
	}
	wg.Wait()

	log.Printf("✅ LOAD TEST COMPLETE in %s: sent=%d received=%d failures=%d",
		time.Since(start).Round(time.Millisecond), sent.Load(), received.Load(), failures.Load())
}

func readAccounts(path string) ([]account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []account
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(strings.TrimSpace(sc.Text()), "\t")
		if len(fields) != 3 {
			continue
		}
		out = append(out, account{ID: fields[0], Token: fields[2]})
	}
	return out, sc.Err()
}

func runPair(a, b account) {
	chatID := createChat(a, b)
	if chatID == "" {
		failures.Add(1)
		return
	}

	// Both sides listen; each expects the other's messages plus its own echo.
	expect := 2 * *msgCount
	var ready, done sync.WaitGroup
	ready.Add(2)
	done.Add(2)
	for _, acc := range []account{a, b} {
		go listen(&ready, &done, acc, chatID, expect)
	}
	ready.Wait()

	var sendWg sync.WaitGroup
	sendWg.Add(2)
	go spamChat(&sendWg, a, chatID)
	go spamChat(&sendWg, b, chatID)
	sendWg.Wait()
	done.Wait()
}

func createChat(a, b account) string {
	var c struct {
		ID string `json:"id"`
	}
	code, err := postJSON(a.Token, "/api/chats", map[string]string{"receiverId": b.ID}, &c)
	if err != nil || code != http.StatusOK {
		log.Printf("❌ Create Chat Failed: status=%d err=%v", code, err)
		return ""
	}
	return c.ID
}

func listen(ready, done *sync.WaitGroup, acc account, chatID string, expect int) {
	defer done.Done()
	wsURL := "ws" + strings.TrimPrefix(*baseURL, "http") + "/ws?token=" + acc.Token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", acc.ID, err)
		failures.Add(1)
		ready.Done()
		return
	}
	defer conn.Close()

	data, _ := json.Marshal(map[string]string{"chatRoomId": chatID})
	if err := conn.WriteJSON(envelope{Event: "register", Data: data}); err != nil {
		failures.Add(1)
		ready.Done()
		return
	}

	registered := false
	got := 0
	for got < expect {
		conn.SetReadDeadline(time.Now().Add(15 * time.Second))
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Printf("❌ WS Read Fail [%s]: got %d/%d: %v", acc.ID, got, expect, err)
			failures.Add(1)
			break
		}
		switch env.Event {
		case "registered":
			if !registered {
				registered = true
				ready.Done()
			}
		case "message":
			got++
			received.Add(1)
		case "error":
			log.Printf("❌ WS Error [%s]: %s", acc.ID, env.Data)
		}
	}
	if !registered {
		ready.Done()
	}
}

func spamChat(wg *sync.WaitGroup, acc account, chatID string) {
	defer wg.Done()

	for i := 0; i < *msgCount; i++ {
		body := map[string]string{
			"chatId":  chatID,
			"content": fmt.Sprintf("LoadTest Msg %d from %s", i, acc.ID),
		}
		code, err := postJSON(acc.Token, "/api/messages", body, nil)
		if err != nil || code != http.StatusCreated {
			log.Printf("❌ Send Fail [%s]: status=%d err=%v", acc.ID, code, err)
			failures.Add(1)
			return
		}
		sent.Add(1)
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(10 * time.Millisecond)
	}
}

func postJSON(token, endpoint string, data, out any) (int, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, *baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
