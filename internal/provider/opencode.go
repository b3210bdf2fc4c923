package provider

// OpenCode drives `opencode run`
type OpenCode struct {
	Base
}

// NewOpenCode returns an OpenCode provider for the binary at path
func NewOpenCode(path string) *OpenCode {
	return &OpenCode{Base{kind: KindOpenCode, path: path}}
}

// BuildArgs runs one prompt, continuing the session when one is set
func (o *OpenCode) BuildArgs(opts ExecuteOptions) []string {
	args := []string{"run", "-p", promptWithImages(opts)}
	if opts.SessionID != "" {
		args = append(args, "--session", opts.SessionID)
	}
	return args
}
