// Package tokenizer turns raw text into BERT model inputs: script-aware
// pre-splitting, greedy longest-match WordPiece segmentation and pair assembly
// (sentinels, truncation, padding, attention masks).
package tokenizer
