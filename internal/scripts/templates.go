package scripts

// commonPrepTemplate prepares any node for kubeadm: swap off, kernel
// modules, sysctls, containerd with the systemd cgroup driver, and the
// pinned kubeadm/kubelet/kubectl packages.
const commonPrepTemplate = `#!/usr/bin/env bash
set -euxo pipefail
export DEBIAN_FRONTEND=noninteractive

# kubelet refuses to start with swap enabled
swapoff -a
sed -i '/ swap / s/^/#/' /etc/fstab

cat <<EOF >/etc/modules-load.d/k8s.conf
overlay
br_netfilter
EOF
modprobe overlay
modprobe br_netfilter

cat <<EOF >/etc/sysctl.d/99-kubernetes.conf
net.bridge.bridge-nf-call-iptables  = 1
net.bridge.bridge-nf-call-ip6tables = 1
net.ipv4.ip_forward                 = 1
EOF
sysctl --system

apt-get update
apt-get install -y apt-transport-https ca-certificates curl gpg containerd

mkdir -p /etc/containerd
containerd config default >/etc/containerd/config.toml
sed -i 's/SystemdCgroup = false/SystemdCgroup = true/' /etc/containerd/config.toml
systemctl restart containerd
systemctl enable containerd

mkdir -p /etc/apt/keyrings
curl -fsSL "https://pkgs.k8s.io/core:/stable:/v{{ .kubernetes_minor }}/deb/Release.key" |
    gpg --dearmor --yes -o /etc/apt/keyrings/kubernetes-apt-keyring.gpg
echo "deb [signed-by=/etc/apt/keyrings/kubernetes-apt-keyring.gpg] https://pkgs.k8s.io/core:/stable:/v{{ .kubernetes_minor }}/deb/ /" \
    >/etc/apt/sources.list.d/kubernetes.list

apt-get update
apt-get install -y \
    "kubelet={{ .kubernetes_version }}-*" \
    "kubeadm={{ .kubernetes_version }}-*" \
    "kubectl={{ .kubernetes_version }}-*"
apt-mark hold kubelet kubeadm kubectl
systemctl enable kubelet
`

// controlPlaneInitTemplate initialises the first control plane and installs
// the Calico CNI. The admin.conf guard makes re-runs a no-op, which keeps
// resumed bootstraps from re-initialising a live control plane.
const controlPlaneInitTemplate = `#!/usr/bin/env bash
set -euxo pipefail

if [ -f /etc/kubernetes/admin.conf ]; then
    echo "control plane already initialised, skipping kubeadm init"
else
    kubeadm init \
        --kubernetes-version "{{ .kubernetes_version }}" \
        --pod-network-cidr "{{ .pod_network_cidr }}" \
        --service-cidr "{{ .service_cidr }}" \
        --apiserver-advertise-address "{{ .advertise_address }}" \
        --node-name "{{ .node_name }}"
fi

mkdir -p /root/.kube
cp -f /etc/kubernetes/admin.conf /root/.kube/config

export KUBECONFIG=/etc/kubernetes/admin.conf
kubectl apply -f https://raw.githubusercontent.com/projectcalico/calico/v3.28.2/manifests/calico.yaml
`

// workerJoinTemplate joins a worker using the join command captured from the
// control plane. The kubelet.conf guard keeps re-runs idempotent.
const workerJoinTemplate = `#!/usr/bin/env bash
set -euxo pipefail

if [ -f /etc/kubernetes/kubelet.conf ]; then
    echo "node already joined, skipping kubeadm join"
else
    {{ .join_command }} --node-name "{{ .node_name }}"
fi
`
