package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"packetgate/internal/engine"
	"packetgate/internal/packet"
	"packetgate/internal/replay"
)

// newValidateCmd creates the "packetgate validate" command group.
func newValidateCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate packets, episodes, or golden fixtures",
	}
	cmd.AddCommand(
		newValidatePacketCmd(rc),
		newValidateEpisodeCmd(rc),
		newValidateGoldensCmd(rc),
	)
	return cmd
}

// #region validate-packet
func newValidatePacketCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "packet <file>",
		Short: "Validate a single JSON packet from a fresh episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read packet: %w", err)
			}
			if err := packet.CheckStructure(raw); err != nil {
				return err
			}
			p, err := packet.Unmarshal(raw)
			if err != nil {
				return err
			}

			eng, cleanup, err := buildEngine(rc)
			if err != nil {
				return err
			}
			defer cleanup()

			out := eng.Submit(p)
			printOutcome(cmd.OutOrStdout(), p.Header.PacketID, out)
			if !out.OK {
				return fmt.Errorf("packet %s failed validation", p.Header.PacketID)
			}
			return nil
		},
	}
}

// #endregion validate-packet

// #region validate-episode
func newValidateEpisodeCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "episode <file>",
		Short: "Validate an NDJSON episode, stopping at the first failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open episode: %w", err)
			}
			defer f.Close()

			packets, err := readEpisode(f)
			if err != nil {
				return err
			}

			eng, cleanup, err := buildEngine(rc)
			if err != nil {
				return err
			}
			defer cleanup()

			w := cmd.OutOrStdout()
			outs := eng.ValidateEpisode(packets)
			for i, out := range outs {
				printOutcome(w, packets[i].Header.PacketID, out)
			}
			if last := outs[len(outs)-1]; !last.OK {
				return fmt.Errorf("episode failed at packet %d of %d", len(outs), len(packets))
			}
			fmt.Fprintf(w, "episode ok: %d packets\n", len(outs))
			return nil
		},
	}
}

// readEpisode reads newline-delimited packets, structurally checking each
// line before decoding it.
func readEpisode(r io.Reader) ([]packet.Packet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var out []packet.Packet
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if err := packet.CheckStructure([]byte(raw)); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		p, err := packet.Unmarshal([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read episode: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("episode is empty")
	}
	return out, nil
}

// #endregion validate-episode

// #region validate-goldens
func newValidateGoldensCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "goldens [dir]",
		Short: "Replay golden fixtures and compare against recorded outcomes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "testdata"
			if len(args) == 1 {
				dir = args[0]
			}
			paths, err := replay.FindFixtures(dir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no fixtures under %s", dir)
			}

			w := cmd.OutOrStdout()
			failed := 0
			for _, path := range paths {
				steps, sum, err := replay.RunFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				status := "PASS"
				if !sum.Passed() {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(w, "%s %s (%d/%d) %s\n", status, filepath.Base(path), sum.Matches, sum.TotalSteps, sum.Description)
				for i, step := range steps {
					if !step.Match {
						fmt.Fprintf(w, "  step %d (%s): %s\n", i, step.PacketID, step.Mismatch)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixtures failed", failed, len(paths))
			}
			return nil
		},
	}
}

// #endregion validate-goldens

// printOutcome writes one packet's verdict in the fixed single-line form.
func printOutcome(w io.Writer, packetID string, out engine.Outcome) {
	status := "ok"
	if !out.OK {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%-4s %s %s -> %s\n", status, packetID, out.From, out.To)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "     error: %s\n", e)
	}
	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "     warning: %s\n", warn)
	}
}
