package provider

// Gemini drives `gemini -p`. The headless mode has no resume and no image
// input; images only work through its interactive UI.
type Gemini struct {
	Base
}

// NewGemini returns a Gemini provider for the binary at path
func NewGemini(path string) *Gemini {
	return &Gemini{Base{kind: KindGemini, path: path}}
}

// SupportsImages is always false for headless Gemini
func (g *Gemini) SupportsImages() bool { return false }

// ValidateOptions rejects any image input
func (g *Gemini) ValidateOptions(opts ExecuteOptions) error {
	if len(opts.ImagePaths) > 0 {
		return &ExecutorError{
			Kind:   NotSupported,
			Detail: "Gemini CLI does not accept images in headless mode; use Claude or OpenCode for image analysis",
		}
	}
	return nil
}

// BuildArgs passes the prompt only; session ids are ignored
func (g *Gemini) BuildArgs(opts ExecuteOptions) []string {
	return []string{"-p", opts.Message}
}
