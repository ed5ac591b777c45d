//go:build !ocr

package analyzer

// NewTextRecognizer returns nil when the binary is built without the ocr tag;
// full analysis then skips rendered text extraction
func NewTextRecognizer(language string) (TextRecognizer, error) {
	return nil, nil
}
