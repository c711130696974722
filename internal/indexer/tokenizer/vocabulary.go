package tokenizer

// Vocabulary is an immutable term set. Build one with NewVocabulary.
type Vocabulary struct {
	terms map[string]struct{}
}

// NewVocabulary returns a Vocabulary holding the given terms.
func NewVocabulary(terms ...string) Vocabulary {
	v := Vocabulary{terms: make(map[string]struct{}, len(terms))}
	for _, t := range terms {
		v.terms[t] = struct{}{}
	}
	return v
}

// Contains reports whether term is in the set.
func (v Vocabulary) Contains(term string) bool {
	_, ok := v.terms[term]
	return ok
}

// Len returns the number of distinct terms.
func (v Vocabulary) Len() int {
	return len(v.terms)
}

// markupTerms is HTML structure and web address vocabulary that leaks out of
// rendered forum bodies.
var markupTerms = []string{
	"p", "href", "li", "ul", "rel", "&lt", "br", "body", "html",
	"http", "https", "hi", "file", "nofollow", "www", "com", "head",
}

// stopWordTerms is the common English words list (with contractions) plus a
// handful of tokens that are noise in a programming forum.
var stopWordTerms = []string{
	"'tis", "'twas", "a", "able", "about", "across", "after",
	"ain't", "all", "almost", "also", "am", "among",
	"an", "and", "any", "are", "aren't", "as",
	"at", "be", "because", "been", "but", "by",
	"can", "can't", "cannot", "could", "could've", "couldn't",
	"dear", "did", "didn't", "do", "does", "doesn't",
	"don't", "either", "else", "ever", "every", "for",
	"from", "get", "got", "had", "has", "hasn't",
	"have", "he", "he'd", "he'll", "he's", "her",
	"hers", "him", "his", "how", "how'd", "how'll",
	"how's", "however", "i", "i'd", "i'll", "i'm",
	"i've", "if", "in", "into", "is", "isn't",
	"it", "it's", "its", "just", "least", "let",
	"like", "likely", "may", "me", "might", "might've",
	"mightn't", "most", "must", "must've", "mustn't", "my",
	"neither", "no", "nor", "not", "of", "off",
	"often", "on", "only", "or", "other", "our",
	"own", "rather", "said", "say", "says", "shan't",
	"she", "she'd", "she'll", "she's", "should", "should've",
	"shouldn't", "since", "so", "some", "than", "that",
	"that'll", "that's", "the", "their", "them", "then",
	"there", "there's", "these", "they", "they'd", "they'll",
	"they're", "they've", "this", "tis", "to", "too",
	"twas", "us", "wants", "was", "wasn't", "we",
	"we'd", "we'll", "we're", "were", "weren't", "what",
	"what'd", "what's", "when", "when'd", "when'll",
	"when's", "where", "where'd", "where'll", "where's", "which",
	"while", "who", "who'd", "who'll", "who's", "whom",
	"why", "why'd", "why'll", "why's", "will", "with",
	"won't", "would", "would've", "wouldn't", "yet", "you",
	"you'd", "you'll", "you're", "you've", "your",
	"s", "x", "com", "def", "e", "py",
}

var (
	defaultMarkup    = NewVocabulary(markupTerms...)
	defaultStopWords = NewVocabulary(stopWordTerms...)
)

// DefaultMarkup returns the built-in markup-noise set.
func DefaultMarkup() Vocabulary { return defaultMarkup }

// DefaultStopWords returns the built-in stopword set.
func DefaultStopWords() Vocabulary { return defaultStopWords }
