package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 15 * time.Second}

func main() {
	server := flag.String("server", "http://localhost:8000", "Tappy server URL")
	flag.Parse()

	fmt.Println("Tappy Journal CLI")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Write an entry and press enter. Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /skills, /inbox, /queue, /read <id>")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			fmt.Println("Bye!")
			return
		case input == "/skills":
			fetchSkills(*server)
		case input == "/inbox":
			fetchInbox(*server)
		case input == "/queue":
			fetchQueue(*server)
		case strings.HasPrefix(input, "/read "):
			markRead(*server, strings.TrimSpace(strings.TrimPrefix(input, "/read ")))
		default:
			submitEntry(*server, input)
		}
	}
}

func fetchSkills(server string) {
	var skills []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := getJSON(server+"/api/skills", &skills); err != nil {
		printError("Failed to fetch skills: %v", err)
		return
	}
	fmt.Println("Available skills:")
	for _, s := range skills {
		fmt.Printf("  %s \033[90m(%s)\033[0m\n", s.Name, s.Category)
	}
}

func fetchInbox(server string) {
	var items []struct {
		ID      int64  `json:"id"`
		Title   string `json:"title"`
		Message string `json:"message"`
		Status  string `json:"status"`
		IsRead  bool   `json:"is_read"`
	}
	if err := getJSON(server+"/api/notifications?limit=10", &items); err != nil {
		printError("Failed to fetch inbox: %v", err)
		return
	}
	if len(items) == 0 {
		fmt.Println("Inbox is empty.")
		return
	}
	for _, it := range items {
		marker := "\033[33m●\033[0m"
		if it.IsRead {
			marker = " "
		}
		fmt.Printf("%s [%d] %s \033[90m(%s)\033[0m\n", marker, it.ID, it.Title, it.Status)
		for _, line := range strings.Split(it.Message, "\n") {
			fmt.Printf("      %s\n", line)
		}
	}
}

func fetchQueue(server string) {
	var q struct {
		Depth     int   `json:"depth"`
		Capacity  int   `json:"capacity"`
		Processed int64 `json:"processed"`
		Busy      bool  `json:"busy"`
	}
	if err := getJSON(server+"/api/queue", &q); err != nil {
		printError("Failed to fetch queue: %v", err)
		return
	}
	state := "idle"
	if q.Busy {
		state = "working"
	}
	fmt.Printf("Queue: %d/%d waiting, %d processed, worker %s\n", q.Depth, q.Capacity, q.Processed, state)
}

func submitEntry(server, text string) {
	body, _ := json.Marshal(map[string]string{"text": text})
	resp, err := client.Post(server+"/api/entries", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return
	}
	var created struct {
		Entry struct {
			ID int64 `json:"id"`
		} `json:"entry"`
		QueueDepth int `json:"queue_depth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	fmt.Printf("\033[32m✓\033[0m Saved entry %d (%d in queue). Check /inbox for results.\n", created.Entry.ID, created.QueueDepth)
}

func markRead(server, id string) {
	req, _ := http.NewRequest(http.MethodPatch, server+"/api/notifications/"+id+"/read", nil)
	resp, err := client.Do(req)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return
	}
	fmt.Println("Marked as read.")
}

func getJSON(url string, v interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
