// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/blinklabs-io/atlas/config"
	"github.com/blinklabs-io/atlas/download"
	"github.com/blinklabs-io/atlas/peer"
	"github.com/spf13/pflag"
)

type planFlags struct {
	Flagset         *pflag.FlagSet
	configFile      string
	instancesFile   string
	contract        string
	blockHeight     uint64
	consensusHash   string
	blockHeaderHash string
	assumeHeld      bool
}

func newPlanFlags() *planFlags {
	f := &planFlags{
		Flagset: pflag.NewFlagSet(os.Args[0], pflag.ExitOnError),
	}
	f.Flagset.StringVarP(&f.configFile, "config", "c", "", "path to YAML config file")
	f.Flagset.StringVarP(
		&f.instancesFile,
		"instances",
		"i",
		"",
		"file with one hex encoded CBOR attachment value per line (- for stdin)",
	)
	f.Flagset.StringVar(
		&f.contract,
		"contract",
		attachment.TransientContractIdentifier().String(),
		"contract emitting the attachment values, in issuer.name format",
	)
	f.Flagset.Uint64Var(&f.blockHeight, "block-height", 0, "block height of the attachment values")
	f.Flagset.StringVar(&f.consensusHash, "consensus-hash", "", "consensus hash of the block (hex)")
	f.Flagset.StringVar(&f.blockHeaderHash, "block-header-hash", "", "block header hash of the block (hex)")
	f.Flagset.BoolVar(
		&f.assumeHeld,
		"assume-held",
		false,
		"pretend every peer holds every page to show how attachment sources rank",
	)
	return f
}

func (f *planFlags) Parse() {
	if err := f.Flagset.Parse(os.Args[1:]); err != nil {
		fmt.Printf("failed to parse command args: %s\n", err)
		os.Exit(1)
	}
	if f.instancesFile == "" {
		fmt.Printf("ERROR: --instances is required\n")
		os.Exit(1)
	}
}

func main() {
	f := newPlanFlags()
	f.Parse()

	cfg := &config.Config{}
	if f.configFile != "" {
		var err error
		cfg, err = config.NewConfigFromFile(f.configFile)
		if err != nil {
			fmt.Printf("ERROR: failed to load config: %s\n", err)
			os.Exit(1)
		}
	}
	store, err := cfg.OpenPeerStore()
	if err != nil {
		fmt.Printf("ERROR: failed to open peer store: %s\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	trackerOpts := []peer.TrackerOptionFunc{
		peer.WithLogger(logger),
	}
	if store != nil {
		trackerOpts = append(trackerOpts, peer.WithStore(store))
	}
	tracker, err := peer.NewTracker(trackerOpts...)
	if err != nil {
		fmt.Printf("ERROR: failed to load peers: %s\n", err)
		os.Exit(1)
	}
	defer tracker.Close()
	cfg.SeedTracker(tracker)

	contractID, err := attachment.ParseContractIdentifier(f.contract)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	consensusHash, err := hex.DecodeString(f.consensusHash)
	if err != nil {
		fmt.Printf("ERROR: failed to decode consensus hash: %s\n", err)
		os.Exit(1)
	}
	blockHeaderHash, err := hex.DecodeString(f.blockHeaderHash)
	if err != nil {
		fmt.Printf("ERROR: failed to decode block header hash: %s\n", err)
		os.Exit(1)
	}
	input := os.Stdin
	if f.instancesFile != "-" {
		input, err = os.Open(f.instancesFile)
		if err != nil {
			fmt.Printf("ERROR: failed to open instances: %s\n", err)
			os.Exit(1)
		}
		defer input.Close()
	}
	instances, err := loadInstances(
		logger,
		input,
		contractID,
		attachment.NewConsensusHash(consensusHash),
		attachment.NewBlockHeaderHash(blockHeaderHash),
		f.blockHeight,
	)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	batch := download.NewAttachmentsBatch()
	for _, instance := range instances {
		batch.TrackAttachment(instance)
	}
	stateCtx := download.NewAttachmentsBatchStateContext(
		batch,
		tracker.Snapshot(),
		cfg.ConnectionOptions(),
	)
	if err := printPlan(os.Stdout, stateCtx, f.assumeHeld); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
}

// loadInstances reads one hex encoded CBOR attachment value per line. Blank
// lines and lines starting with # are skipped. Lines that do not hold a valid
// attachment value are logged and skipped
func loadInstances(
	logger *slog.Logger,
	r io.Reader,
	contractID attachment.ContractIdentifier,
	consensusHash attachment.ConsensusHash,
	blockHeaderHash attachment.BlockHeaderHash,
	blockHeight uint64,
) ([]*attachment.AttachmentInstance, error) {
	var ret []*attachment.AttachmentInstance
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		data, err := hex.DecodeString(strings.TrimPrefix(line, "0x"))
		if err != nil {
			logger.Warn(
				"skipping attachment value",
				"component", "atlas",
				"subsystem", "plan",
				"line", lineNum,
				"error", err,
			)
			continue
		}
		instance, err := attachment.NewAttachmentInstanceFromCbor(
			data,
			contractID,
			consensusHash,
			blockHeaderHash,
			blockHeight,
		)
		if err != nil {
			logger.Warn(
				"skipping attachment value",
				"component", "atlas",
				"subsystem", "plan",
				"line", lineNum,
				"error", err,
			)
			continue
		}
		ret = append(ret, instance)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func printPlan(w io.Writer, stateCtx *download.AttachmentsBatchStateContext, assumeHeld bool) error {
	batch := stateCtx.Batch()
	fmt.Fprintf(w, "batch: %s\n", batch)
	fmt.Fprintf(w, "peers: %d\n", len(stateCtx.Peers()))
	inventoryRequests := stateCtx.PrioritizedInventoryRequests().Drain()
	fmt.Fprintf(w, "inventory requests: %d\n", len(inventoryRequests))
	for i, req := range inventoryRequests {
		fmt.Fprintf(
			w,
			"  %d. %s%s (contract %s, peer %s)\n",
			i+1,
			req.URL,
			req.RequestPath(),
			req.ContractID,
			req.ReliabilityReport,
		)
	}
	if assumeHeld {
		var err error
		stateCtx, err = stateCtx.ExtendWithInventories(
			fullInventories(inventoryRequests, stateCtx.ConnectionOptions()),
		)
		if err != nil {
			return err
		}
	}
	attachmentRequests := stateCtx.PrioritizedAttachmentRequests().Drain()
	fmt.Fprintf(w, "attachment requests: %d\n", len(attachmentRequests))
	for i, req := range attachmentRequests {
		sources := req.SortedSources()
		if len(sources) == 0 {
			fmt.Fprintf(w, "  %d. %s deferred (no known source)\n", i+1, req.RequestPath())
			continue
		}
		fmt.Fprintf(w, "  %d. %s from %s\n", i+1, req.RequestPath(), strings.Join(sources, ", "))
	}
	return nil
}

// fullInventories answers every inventory request as if the peer held every
// attachment on every requested page
func fullInventories(
	requests []*download.AttachmentsInventoryRequest,
	options download.ConnectionOptions,
) *download.InventoryResults {
	results := download.NewInventoryResults()
	for _, req := range requests {
		resp := &download.InventoryResponse{
			BlockID: req.BlockHeaderHash,
		}
		for _, pageIndex := range req.Pages {
			inventory := make([]byte, options.MaxAttachmentsPerPage)
			for i := range inventory {
				inventory[i] = 1
			}
			resp.Pages = append(
				resp.Pages,
				download.AttachmentPage{
					Index:     pageIndex,
					Inventory: inventory,
				},
			)
		}
		results.AddResponse(req, req.URL, resp)
	}
	return results
}
