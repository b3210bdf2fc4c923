package provider

// Claude drives `claude -p` with stream-json output
type Claude struct {
	Base
}

// NewClaude returns a Claude provider for the binary at path
func NewClaude(path string) *Claude {
	return &Claude{Base{kind: KindClaude, path: path}}
}

// BuildArgs streams JSON events and resumes the session when one is set
func (c *Claude) BuildArgs(opts ExecuteOptions) []string {
	args := []string{
		"--output-format", "stream-json",
		"--verbose",
		"-p", promptWithImages(opts),
	}
	if opts.SessionID != "" {
		args = append(args, "--resume", opts.SessionID)
	}
	for _, tool := range opts.AllowedTools {
		args = append(args, "--allowed-tool", tool)
	}
	if opts.PermissionMode != "" && opts.PermissionMode != PermissionDefault {
		args = append(args, "--permission-mode", string(opts.PermissionMode))
	}
	return args
}
