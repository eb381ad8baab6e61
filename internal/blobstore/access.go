package blobstore

// CanReadVoice reports whether identity may read a voice clip's bytes:
// sender or recipient, both checked against metadata.
func CanReadVoice(meta Metadata, identity string) bool {
	return identity == meta.SenderPubkey || identity == meta.RecipientPubkey
}

// CanDeleteVoice reports whether identity may delete a voice clip: the
// recipient only.
func CanDeleteVoice(meta Metadata, identity string) bool {
	return identity == meta.RecipientPubkey
}
