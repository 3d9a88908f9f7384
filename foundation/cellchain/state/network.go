package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
)

// proposeTimeout bounds how long a block proposal to one peer may take.
const proposeTimeout = 10 * time.Second

// NetSendBlockToPeers propagates a locally mined block to every known peer.
// Per-peer failures are collected, a peer that is down does not stop the
// others from receiving the block.
func (s *State) NetSendBlockToPeers(block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started: blk[%s]", block.Hash())
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	client := http.Client{Timeout: proposeTimeout}

	var errCount int
	for _, pr := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("http://%s/v1/node/block/propose", pr.Host)

		data, err := json.Marshal(database.NewBlockData(block))
		if err != nil {
			return fmt.Errorf("marshal block: %w", err)
		}

		resp, err := client.Post(url, "application/json", bytes.NewReader(data))
		if err != nil {
			s.evHandler("state: NetSendBlockToPeers: WARNING: peer[%s]: %s", pr.Host, err)
			errCount++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			s.evHandler("state: NetSendBlockToPeers: WARNING: peer[%s]: status %d", pr.Host, resp.StatusCode)
			errCount++
		}
	}

	if errCount > 0 {
		return fmt.Errorf("failed to send block to %d peer(s)", errCount)
	}

	return nil
}
