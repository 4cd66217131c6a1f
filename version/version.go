package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built software's version.
	Version = BridgeSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

// BridgeSemVer is the semantic version of the relay software.
const BridgeSemVer = "0.4.0"

// Protocol versions an encoding or rule set that every party replaying the
// same history must agree on.
type Protocol uint64

var (
	// RelayProtocol versions the raw header parcel encoding accepted by the
	// verifiers.
	RelayProtocol Protocol = 1

	// GameProtocol versions the relayer game state transition rules.
	GameProtocol Protocol = 1
)
