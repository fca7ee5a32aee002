package constants

const (
	AppName      = "quantum-disperse"
	WalletFile   = "wallet.json"
	TokensFile   = "tokens.json"
	NetworksFile = "networks.json"

	SchemaV1      = 1
	FilePerm      = 0o600
	DirectoryPerm = 0o700

	NativeAddr = "0x0000000000000000000000000000000000000000"

	// Chain-native unit scale.
	NativeDecimals = 18

	// AAD const for the user wallet envelope
	AADConstant = "quantumauth:ethwallet:v1"

	DefaultNativeMethod = "disperseEther"
)
