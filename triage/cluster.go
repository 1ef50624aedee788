package triage

import "sort"

// membershipKey identifies one cluster group.
type membershipKey struct {
	Type ClusterType
	Key  string
}

// buildClusters groups PR indices by shared feature values and keeps groups
// of at least minClusterSize members. It also derives duplicatePeers for
// each PR: the number of distinct other PRs it shares at least one kept
// group with. Peer counts are computed once, before scoring.
//
// Adjacency is by integer index into items, never by pointer; peer counting
// is a set union over index lists.
func buildClusters(items []ScoredPullRequest, minClusterSize int) (groups map[membershipKey][]int, peers []int) {
	groups = make(map[membershipKey][]int)

	for i := range items {
		for _, area := range items[i].PathAreas {
			if area == "" {
				continue
			}
			k := membershipKey{ClusterPathArea, area}
			groups[k] = append(groups[k], i)
		}
		if fp := items[i].TitleFingerprint; fp != "" {
			k := membershipKey{ClusterTitleFingerprint, fp}
			groups[k] = append(groups[k], i)
		}
		for _, sig := range items[i].FailureSignatures {
			k := membershipKey{ClusterFailureSignature, sig}
			groups[k] = append(groups[k], i)
		}
	}

	for k, members := range groups {
		members = dedupeSortedInts(members)
		if len(members) < minClusterSize {
			delete(groups, k)
			continue
		}
		groups[k] = members
	}

	peers = make([]int, len(items))
	peerSets := make([]map[int]bool, len(items))
	for _, members := range groups {
		for _, i := range members {
			if peerSets[i] == nil {
				peerSets[i] = make(map[int]bool)
			}
			for _, j := range members {
				if j != i {
					peerSets[i][j] = true
				}
			}
		}
	}
	for i, set := range peerSets {
		peers[i] = len(set)
	}
	return groups, peers
}

// assembleClusters turns kept groups into sorted PatternClusters. Clusters
// sort by size descending then "{type}:{key}" ascending; PR refs within a
// cluster sort by priority descending, repo ascending, number ascending.
// Must run after scoring so the refs carry final priority scores.
func assembleClusters(items []ScoredPullRequest, groups map[membershipKey][]int) []PatternCluster {
	clusters := make([]PatternCluster, 0, len(groups))
	for k, members := range groups {
		refs := make([]ClusterPullRequest, 0, len(members))
		for _, i := range members {
			refs = append(refs, ClusterPullRequest{
				Repo:          items[i].Repo,
				Number:        items[i].Number,
				Title:         items[i].Title,
				HTMLURL:       items[i].HTMLURL,
				PriorityScore: items[i].PriorityScore,
			})
		}
		sort.Slice(refs, func(a, b int) bool {
			if refs[a].PriorityScore != refs[b].PriorityScore {
				return refs[a].PriorityScore > refs[b].PriorityScore
			}
			ra, rb := refs[a].Repo.String(), refs[b].Repo.String()
			if ra != rb {
				return ra < rb
			}
			return refs[a].Number < refs[b].Number
		})
		clusters = append(clusters, PatternCluster{
			Type:         k.Type,
			Key:          k.Key,
			Size:         len(members),
			PullRequests: refs,
		})
	}

	sort.Slice(clusters, func(a, b int) bool {
		if clusters[a].Size != clusters[b].Size {
			return clusters[a].Size > clusters[b].Size
		}
		ka := string(clusters[a].Type) + ":" + clusters[a].Key
		kb := string(clusters[b].Type) + ":" + clusters[b].Key
		return ka < kb
	})
	return clusters
}

func dedupeSortedInts(in []int) []int {
	if len(in) == 0 {
		return in
	}
	sort.Ints(in)
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
