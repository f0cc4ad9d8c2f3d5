package momence

// Signature is one set of client-identification headers. The collector sits
// behind an edge bot-defense layer that fingerprints identical callers, so we
// rotate through a fixed pool, advanced by call count. The concrete values are
// an operational detail; the pool is injectable for tests and ops tweaks.
type Signature struct {
	UserAgent      string
	AcceptLanguage string
	Origin         string
}

var defaultSignatures = []Signature{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		Origin:         "https://momence.com",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.8",
		Origin:         "https://momence.com",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		AcceptLanguage: "en-US,en;q=0.9",
		Origin:         "https://www.momence.com",
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
		AcceptLanguage: "en-US,en;q=0.7",
		Origin:         "https://momence.com",
	},
}

type SignatureRotator struct {
	pool  []Signature
	calls int
}

func NewSignatureRotator(pool ...Signature) *SignatureRotator {
	if len(pool) == 0 {
		pool = defaultSignatures
	}
	return &SignatureRotator{pool: pool}
}

func (r *SignatureRotator) Next() Signature {
	sig := r.pool[r.calls%len(r.pool)]
	r.calls++
	return sig
}
