package provisioning

// cryptoTag identifies which in-flight crypto request a CryptoDone
// completion corresponds to, carried as crypto.CryptoDone.Context.
type cryptoTag int

const (
	tagGenerateKeyPair cryptoTag = iota
	tagECDH
	tagConfirmationSalt
	tagConfirmationKey
	tagOwnConfirmation
	tagCCMEncrypt
	tagCCMDecrypt
)

// cryptoCtx tags a Toolbox request with both its purpose and the
// session generation it belongs to, so a stale completion delivered
// after cancel()/terminal transition (generation bumped) is recognized
// and discarded rather than resurrecting dead session state.
type cryptoCtx struct {
	tag        cryptoTag
	generation uint64
}
