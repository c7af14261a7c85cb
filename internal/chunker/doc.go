// Package chunker divides document text into overlapping word windows for
// embedding and retrieval.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, chunk := range c.Split(chunker.Normalize(text)) {
//	    fmt.Println(len(chunk))
//	}
//
// # Chunking Strategy
//
// Text is split on whitespace into a flat word sequence. Windows hold Size
// words and advance by Size-Overlap words, so adjacent windows share exactly
// Overlap words. The final window may be shorter.
//
// A 2500 word document with size 1000 and overlap 100 produces windows that
// start at words 0, 900 and 1800.
//
// Windows under MinChunkChars characters are dropped. Overlap must be smaller
// than Size; New rejects configurations whose stride would not advance.
//
// Output is ordered and deterministic for identical input.
package chunker
