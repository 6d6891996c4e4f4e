package cli_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/formatfuzz/internal/cli"
)

func writeInputs(c *cli.CLI) {
	c.WriteFile("a.tlv", tlvFile(tlvChunk("TEXT", "abcd"), tlvChunk("DATA", "xy")))
	c.WriteFile("b.tlv", tlvFile(tlvChunk("DATA", "xyz!!"), tlvChunk("TEXT", "hello"), tlvChunk("IEND", "")))
}

func Test_Mutations_Writes_Decisions_And_Outputs(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeInputs(c)

	stdout := c.MustRun("mutations", "-n", "50", "--seed", "3", "-o", "out", "a.tlv", "b.tlv")
	cli.AssertContains(t, stdout, "attempted=50")
	cli.AssertContains(t, stdout, "mutation-000001:")

	require.NotEmpty(t, c.ReadFile("a.tlv-decisions"))
	require.NotEmpty(t, c.ReadFile("b.tlv-decisions"))
	require.NotEmpty(t, c.ReadFile("out/mutation-000001"))

	// Each output is a valid file of the format.
	c.MustRun("parse", "out/mutation-000001")
}

func Test_Mutations_Skips_Decisions_When_Disabled(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeInputs(c)

	c.MustRun("mutations", "-n", "5", "--no-decisions", "a.tlv", "b.tlv")

	_, err := os.Stat(c.Path("a.tlv-decisions"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Mutations_Resumes_From_Snapshot(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeInputs(c)

	c.MustRun("mutations", "-n", "1", "--snapshot", "session.ffz", "a.tlv", "b.tlv")
	require.NotEmpty(t, c.ReadFile("session.ffz"))

	stdout := c.MustRun("mutations", "-n", "20", "--seed", "9", "--resume", "session.ffz")
	cli.AssertContains(t, stdout, "attempted=20")
}

func Test_Mutations_Rejects_Resume_With_Inputs(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeInputs(c)

	_, stderr, code := c.Run("mutations", "--resume", "session.ffz", "a.tlv")
	require.Equal(t, -2, code)
	cli.AssertContains(t, stderr, "--resume cannot be combined")
}

func Test_Mutations_Warns_About_Unparsed_Inputs(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeInputs(c)
	c.WriteFile("junk", []byte("junk"))

	stdout, stderr, code := c.Run("mutations", "-n", "10", "a.tlv", "junk")
	require.Equal(t, 1, code)
	cli.AssertContains(t, stdout, "attempted=10")
	cli.AssertContains(t, stderr, "warning: junk:")
	cli.AssertContains(t, stderr, "skipped as mutation target")
}

func Test_Mutations_Fails_When_No_Input_Parses(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("junk", []byte("junk"))

	_, stderr, code := c.Run("mutations", "-n", "10", "junk")
	require.Equal(t, -2, code)
	cli.AssertContains(t, stderr, "no candidates")
}
