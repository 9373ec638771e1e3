package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/txn/signed"
	"go.dedis.ch/shipagency/crypto/bls"
	"go.dedis.ch/shipagency/crypto/loader"
	"go.dedis.ch/shipagency/internal/testing/fake"
)

const nodeAddr = "127.0.0.1:2311"

func TestShipagent_Scenario(t *testing.T) {
	dir := t.TempDir()

	ownerKey := filepath.Join(dir, "owner.key")
	customerKey := filepath.Join(dir, "customer.key")

	require.NoError(t, run([]string{"shipagent", "key", "new", "--save", ownerKey}))
	require.NoError(t, run([]string{"shipagent", "key", "new", "--save", customerKey}))

	customer := addressOf(t, customerKey)

	sigs := make(chan os.Signal)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()

		err := runWithCfg([]string{
			"shipagent", "node",
			"--listen", nodeAddr,
			"--owner-key", ownerKey,
			"--fund", fmt.Sprintf("%s=1", customer),
		}, config{Channel: sigs, Writer: io.Discard})
		require.NoError(t, err)
	}()

	defer func() {
		// Simulate a Ctrl+C
		close(sigs)
		wg.Wait()
	}()

	waitNode(t)

	owner := writeConfig(t, dir, "owner", ownerKey)
	cust := writeConfig(t, dir, "customer", customerKey)

	out := exec(t, owner, "status")
	require.Contains(t, out, "(owner)")
	require.Contains(t, out, "the agency has no name")

	out = exec(t, owner, "agency", "set-name", "--name", "PortAgency")
	require.Contains(t, out, "agency:    PortAgency")

	_, err := execErr(cust, "agency", "set-name", "--name", "Pirates")
	require.Error(t, err)
	require.Contains(t, err.Error(), "caller is not the agency owner")

	exec(t, cust, "ship", "set-imo", "--imo", "9074729")

	out = exec(t, cust, "ship", "set-tonnage", "--tonnage", "1000")
	require.Contains(t, out, "ship:      IMO 9074729, net tonnage 1000")
	require.Contains(t, out, "dues:      0.00024995")

	_, err = execErr(cust, "clearance")
	require.Error(t, err)
	require.Contains(t, err.Error(), "insufficient funds")

	out = exec(t, cust, "deposit", "--amount", "0.0003")
	require.Contains(t, out, "balance:   0.0003")

	out = exec(t, cust, "--poll-rate", "100", "--confirmation-timeout", "10s", "clearance")
	require.Contains(t, out, "clearance: granted")
	require.Contains(t, out, "balance:   0.00005005")

	out = exec(t, owner, "status")
	require.Contains(t, out, "balance:   0.00024995")

	out = exec(t, cust, "withdraw", "--amount", "0.00005005")
	require.Contains(t, out, "balance:   0\n")

	out = exec(t, cust, "journal", "--last", "2")
	require.Contains(t, out, "withdraw")
	require.Contains(t, out, "clearance")
	require.NotContains(t, out, "deposit")
}

func TestShipagent_Dues(t *testing.T) {
	out := new(bytes.Buffer)

	err := runWithCfg([]string{"shipagent", "dues", "--tonnage", "800"}, config{Writer: out})
	require.NoError(t, err)
	require.Equal(t, "0.00019996\n", out.String())

	err = runWithCfg([]string{"shipagent", "dues", "--tonnage", "0"}, config{Writer: out})
	require.EqualError(t, err, "failed to compute: tonnage 0: invalid tonnage")
}

func TestShipagent_BadConfig(t *testing.T) {
	err := run([]string{"shipagent", "--config", "/does/not/exist.yml", "status"})
	require.Regexp(t, "^failed to load config: failed to read config file:", err)
}

func TestOpenEnv_Overrides(t *testing.T) {
	t.Setenv("SHIPAGENT_POLL_RATE", "2")

	e, err := openEnv(fake.FlagSet{})
	require.NoError(t, err)
	require.Equal(t, 2.0, e.cfg.PollRate)
	require.Equal(t, 2*time.Minute, e.cfg.Timeouts.Confirmation)
	require.NoError(t, e.Close())

	e, err = openEnv(fake.FlagSet{
		"poll-rate":            20.0,
		"confirmation-timeout": time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, 20.0, e.cfg.PollRate)
	require.Equal(t, time.Second, e.cfg.Timeouts.Confirmation)
	require.NoError(t, e.Close())
}

func TestShipagent_Node(t *testing.T) {
	err := run([]string{"shipagent", "node"})
	require.EqualError(t, err, "failed to resolve owner: use --owner or --owner-key")

	err = run([]string{"shipagent", "node", "--owner", "0x01"})
	require.EqualError(t, err, "failed to resolve owner: malformed address '0x01'")

	err = run([]string{
		"shipagent", "node",
		"--owner", "0x00000000000000000000000000000000000000aa",
		"--fund", "0x00000000000000000000000000000000000000bb",
	})
	require.EqualError(t, err, "invalid fund '0x00000000000000000000000000000000000000bb': missing '='")
}

// -----------------------------------------------------------------------------
// Utility functions

func addressOf(t *testing.T, path string) ledger.Address {
	data, err := loader.NewFileLoader(path).Load()
	require.NoError(t, err)

	signer, err := bls.NewSignerFromBytes(data)
	require.NoError(t, err)

	return signed.AddressOf(signer.PublicKey())
}

func waitNode(t *testing.T) {
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", nodeAddr)
		if err != nil {
			return false
		}

		conn.Close()
		return true
	}, 10*time.Second, 50*time.Millisecond)
}

func writeConfig(t *testing.T, dir, name, key string) string {
	path := filepath.Join(dir, name+".yml")

	content := fmt.Sprintf("ledger: %s\nkey: %s\njournal: %s\npoll_rate: 50\n",
		nodeAddr, key, filepath.Join(dir, name+".db"))

	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

func exec(t *testing.T, cfgPath string, args ...string) string {
	out, err := execErr(cfgPath, args...)
	require.NoError(t, err)

	return out
}

func execErr(cfgPath string, args ...string) (string, error) {
	out := new(bytes.Buffer)

	args = append([]string{"shipagent", "--config", cfgPath}, args...)

	err := runWithCfg(args, config{Writer: out})

	return out.String(), err
}
