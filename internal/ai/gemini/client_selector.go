package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// GeminiClientSelector manages round-robin selection and failover across multiple Gemini clients
type GeminiClientSelector struct {
	clients      []*GeminiClient
	currentIndex int
	mutex        sync.Mutex
}

func NewGeminiClientSelector(clients []*GeminiClient) *GeminiClientSelector {
	return &GeminiClientSelector{
		clients: clients,
	}
}

// GetNextClient returns the next client in round-robin order
func (s *GeminiClientSelector) GetNextClient() (*GeminiClient, int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.clients) == 0 {
		return nil, -1
	}

	client := s.clients[s.currentIndex]
	index := s.currentIndex
	s.currentIndex = (s.currentIndex + 1) % len(s.clients)

	return client, index
}

func (s *GeminiClientSelector) GetClientCount() int {
	return len(s.clients)
}

// TryAllClients attempts the operation with each client once until one succeeds.
// A cancelled context stops the rotation early.
func (s *GeminiClientSelector) TryAllClients(ctx context.Context, operation func(*GeminiClient, int) error) error {
	clientCount := s.GetClientCount()
	if clientCount == 0 {
		return fmt.Errorf("no Gemini clients available")
	}

	var lastErr error
	errorsCollected := make([]string, 0, clientCount)

	for attempt := 0; attempt < clientCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("gemini request abandoned: %w", err)
		}

		client, clientIdx := s.GetNextClient()

		err := operation(client, clientIdx)
		if err == nil {
			slog.Info("Gemini API request succeeded",
				"client_index", clientIdx,
				"attempt", attempt+1)
			return nil
		}

		lastErr = err
		errorsCollected = append(errorsCollected, fmt.Sprintf("client[%d]: %v", clientIdx, err))

		slog.Warn("Gemini API request failed, trying next client",
			"client_index", clientIdx,
			"attempt", attempt+1,
			"error", err)
	}

	slog.Error("All Gemini clients exhausted",
		"total_attempts", clientCount,
		"errors", errorsCollected)

	return fmt.Errorf("all %d Gemini clients failed, last error: %w", clientCount, lastErr)
}

func (s *GeminiClientSelector) Close() {
	for _, c := range s.clients {
		if c != nil && c.Client != nil {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close Gemini client", "error", err)
			}
		}
	}
}
