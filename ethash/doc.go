/*
Package ethash verifies Ethash proof-of-work headers without holding the
dataset.

A relayer ships, next to every header, the 64 dataset rows hashimoto reads
for that header, each as a DoubleNodeWithMerkleProof. The rows are checked
against the Merkle root of the epoch's dataset, which is loaded once per
epoch during genesis bootstrap, and the recomputed mix digest must equal the
header's MixDigest.

The difficulty rules (CalcDifficulty) are pure functions of the parent
header, the child's timestamp and number, and a Params preset describing the
network's fork schedule.

	engine := ethash.NewEngine(ethash.MainnetParams(), roots)
	if err := engine.VerifyHeader(parent, header, proofs); err != nil {
		return err
	}
*/
package ethash
