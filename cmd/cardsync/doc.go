// Command cardsync keeps a local catalog of support cards in step with the
// wiki's support card list and optionally downloads card images.
//
// Typical use:
//
//	cardsync sync              # interactive when attached to a terminal
//	cardsync sync --yes --all  # non-interactive, every rarity
//	cardsync history           # past runs from the SQLite ledger
//	cardsync config init       # write a sample config
package main
