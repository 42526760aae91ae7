package ocr

// TesseractConfig configures the Tesseract backend.
type TesseractConfig struct {
	// Languages passed to Tesseract, e.g. "eng".
	Languages []string
	// Whitelist restricts recognized characters when non-empty.
	Whitelist string
}

// DefaultTesseractWhitelist covers digits and the arithmetic symbols the
// normalizer understands.
const DefaultTesseractWhitelist = "0123456789.+-*/xX÷=() "
