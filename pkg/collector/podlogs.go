package collector

import (
	corev1 "k8s.io/api/core/v1"
)

// podLogRequests returns one request per init and regular container, plus a
// previous-instance request for every container that has restarted.
func podLogRequests(pod *corev1.Pod, req Request) []LogRequest {
	restarted := make(map[string]bool)
	for _, cs := range pod.Status.InitContainerStatuses {
		restarted[cs.Name] = cs.RestartCount > 0
	}
	for _, cs := range pod.Status.ContainerStatuses {
		restarted[cs.Name] = cs.RestartCount > 0
	}

	var out []LogRequest
	add := func(container string) {
		base := LogRequest{
			Namespace: pod.Namespace,
			Pod:       pod.Name,
			Container: container,
			Since:     req.Since(),
			Now:       req.Now,
		}
		out = append(out, base)
		if restarted[container] {
			base.Previous = true
			out = append(out, base)
		}
	}

	for _, c := range pod.Spec.InitContainers {
		add(c.Name)
	}
	for _, c := range pod.Spec.Containers {
		add(c.Name)
	}
	return out
}
